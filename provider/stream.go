package provider

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
)

// maxFrameSize bounds a single stream line. bufio.Scanner's 64KiB default is
// too small for some reasoning models that emit long frames.
const maxFrameSize = 1024 * 1024

// StreamFormat describes how a provider frames its streamed reply.
type StreamFormat struct {
	Provider string
	// Prefix is stripped from each line when present ("data:" for SSE).
	Prefix string
	// Sentinel ends the stream when a frame equals it after prefix stripping.
	Sentinel string
	// Decode extracts the text fragment from one frame. done ends the stream.
	Decode func(frame []byte) (text string, done bool, err error)
}

// NativeStreamFormat parses newline-delimited api.ChatResponse objects.
func NativeStreamFormat(provider string) StreamFormat {
	return StreamFormat{Provider: provider, Decode: decodeNativeFrame}
}

// CompatStreamFormat parses "data: " server-sent events terminated by [DONE].
func CompatStreamFormat(provider string) StreamFormat {
	return StreamFormat{
		Provider: provider,
		Prefix:   "data:",
		Sentinel: "[DONE]",
		Decode:   decodeCompatFrame,
	}
}

func decodeNativeFrame(frame []byte) (string, bool, error) {
	var resp api.ChatResponse
	if err := json.Unmarshal(frame, &resp); err != nil {
		return "", false, err
	}
	return resp.Message.Content, resp.Done, nil
}

type compatStreamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func decodeCompatFrame(frame []byte) (string, bool, error) {
	var chunk compatStreamFrame
	if err := json.Unmarshal(frame, &chunk); err != nil {
		return "", false, err
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	return chunk.Choices[0].Delta.Content, false, nil
}

// Assembler turns a streamed HTTP body into text fragments. Malformed frames
// are logged and skipped; they never end the stream. It implements
// model.ChunkStream.
type Assembler struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	format  StreamFormat
	chunk   string
	err     error
	done    bool
}

// NewAssembler reads frames from body until the sentinel, a done flag or EOF.
func NewAssembler(body io.ReadCloser, format StreamFormat) *Assembler {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Assembler{body: body, scanner: scanner, format: format}
}

func (a *Assembler) Next() bool {
	for !a.done {
		if !a.scanner.Scan() {
			a.done = true
			if err := a.scanner.Err(); err != nil {
				a.err = &model.RequestError{
					Provider: a.format.Provider,
					Err:      errors.Wrap(err, "stream interrupted"),
				}
			}
			return false
		}

		line := strings.TrimSpace(a.scanner.Text())
		if a.format.Prefix != "" {
			line = strings.TrimSpace(strings.TrimPrefix(line, a.format.Prefix))
		}
		if line == "" {
			continue
		}
		if a.format.Sentinel != "" && line == a.format.Sentinel {
			a.done = true
			return false
		}

		text, done, err := a.format.Decode([]byte(line))
		if err != nil {
			log.Warn().
				Err(err).
				Str("provider", a.format.Provider).
				Str("frame", clip(line, 120)).
				Msg("Skipping malformed stream frame")
			continue
		}
		if done {
			a.done = true
		}
		if text != "" {
			a.chunk = text
			return true
		}
	}
	return false
}

func (a *Assembler) Chunk() string {
	return a.chunk
}

func (a *Assembler) Err() error {
	return a.err
}

func (a *Assembler) Close() error {
	a.done = true
	return a.body.Close()
}

// Collect drains stream and returns the concatenated fragments, closing the
// stream when done.
func Collect(stream model.ChunkStream) (string, error) {
	defer stream.Close()
	var b strings.Builder
	for stream.Next() {
		b.WriteString(stream.Chunk())
	}
	if err := stream.Err(); err != nil {
		return b.String(), err
	}
	return b.String(), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
