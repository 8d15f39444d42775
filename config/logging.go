package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions selects where the global zerolog logger writes.
type LogOptions struct {
	DataDir string
	Debug   bool
	// FileOnly keeps the terminal clean; the TUI owns stderr.
	FileOnly bool
}

// InitLogger configures the global zerolog logger.
//
// Without debug, warnings go to stderr in console format. With debug, the
// level drops to debug and everything is also written to <data_dir>/debug.log,
// rotated by lumberjack (which creates it 0600). FileOnly sends output only
// to that file, even when debug is off.
func InitLogger(opts LogOptions) io.Closer {
	level := zerolog.WarnLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if !opts.FileOnly {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	var closer io.Closer = nopCloser{}
	if (opts.Debug || opts.FileOnly) && opts.DataDir != "" {
		logPath := filepath.Join(opts.DataDir, "debug.log")
		rotating := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		writers = append(writers, zerolog.ConsoleWriter{NoColor: true, Out: rotating})
		closer = rotating
	}

	if len(writers) == 0 {
		log.Logger = zerolog.Nop()
		return closer
	}

	log.Logger = log.Output(io.MultiWriter(writers...)).With().Timestamp().Logger()
	if opts.Debug {
		log.Debug().Str("data_dir", opts.DataDir).Msg("Debug logging started")
	}
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
