// Package cli holds the cobra commands of the timebank binary.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Yusufss4/swe573-practice-sub001/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timebank",
	Short: "TimeBank exchange settlement core",
	Long: `timebank runs the settlement core of a community time bank: the
commitment state machine, the time-credit ledger and the rating
visibility gate. Configuration is read from a TOML file; a .env file in
the working directory is loaded into the environment first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(".env")
	},
}

// loadDotEnv loads path into the environment. A missing file is normal; a
// malformed one is an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $TIMEBANK_HOME/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves --config and loads it over the defaults.
func loadConfig() (daemon.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(daemon.Home(), "config.toml")
	}
	cfg, err := daemon.LoadConfig(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the configured logger writing to the command's stderr.
func newLogger(cmd *cobra.Command, cfg daemon.Config) *slog.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	return daemon.NewLogger(cfg.Log, w)
}
