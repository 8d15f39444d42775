// Package cli is the autochat command line.
package cli

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/config"
	"github.com/rustyorb/auto-chat/model"
	"github.com/rustyorb/auto-chat/provider"
	"github.com/rustyorb/auto-chat/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once flags are parsed. Stores are
// opened on first use.
type app struct {
	v         *viper.Viper
	cfg       *config.Config
	logCloser io.Closer

	providers map[string]model.Provider
	history   *storage.HistoryStore
}

func (a *app) Registry() map[string]model.Provider {
	if a.providers == nil {
		a.providers = provider.InitializeProviders(a.cfg, provider.RetryPolicyFromConfig(a.cfg.Retry))
	}
	return a.providers
}

func (a *app) Personas() (*storage.PersonaStore, error) {
	return storage.LoadPersonas(a.cfg.PersonasPath())
}

func (a *app) History() (*storage.HistoryStore, error) {
	if a.history != nil {
		return a.history, nil
	}
	store, err := storage.NewHistoryStore(a.cfg.HistoryDBPath())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open conversation history")
	}
	a.history = store
	return store, nil
}

func (a *app) Snapshots() (*storage.SnapshotStore, error) {
	return storage.NewSnapshotStore(a.cfg.SnapshotsDir())
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close history database")
		}
		a.history = nil
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

// NewRootCommand builds the command tree. Flags are also read from
// AUTOCHAT_* environment variables, e.g. AUTOCHAT_DATA_DIR for --data-dir.
func NewRootCommand(version string) *cobra.Command {
	rootCmd, _ := newRootCommand(version)
	return rootCmd
}

func newRootCommand(version string) (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "autochat",
		Short:         "autochat runs conversations between LLM personas",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			cfg, err := config.LoadWithDataDir(a.v.GetString("data-dir"))
			if err != nil {
				return err
			}
			a.cfg = cfg

			// The TUI owns the terminal, so it logs to the file only.
			a.logCloser = config.InitLogger(config.LogOptions{
				DataDir:  cfg.DataDir(),
				Debug:    config.Debug || a.v.GetBool("debug"),
				FileOnly: a.v.GetBool("interactive"),
			})
			log.Debug().Str("data_dir", cfg.DataDir()).Str("command", cmd.CommandPath()).Msg("Loaded configuration")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Write debug logs to <data_dir>/debug.log")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (default from ~/.config/autochat/settings.toml)")

	a.v.SetEnvPrefix("autochat")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(
		newChatCommand(a),
		newModelsCommand(a),
		newPersonasCommand(a),
		newHistoryCommand(a),
	)

	return rootCmd, a
}

// Execute runs the command line and returns the process exit code.
func Execute(version string) int {
	rootCmd, a := newRootCommand(version)
	// PersistentPostRun is skipped when a command fails.
	defer a.close()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
