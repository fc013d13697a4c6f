// Package cli implements the inkwell command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/daemon"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Local-first notes with points, notifications and cloud sync",
	Long: `inkwell keeps notes, a points ledger and a notification history on this
machine and reconciles notes with a remote store whenever a connection is
available. Run 'inkwell serve' for the HTTP API, or use the subcommands to
work with the local state directly.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $INKWELL_HOME/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.Version = Version
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (daemon.Config, error) {
	path := configPath
	if path == "" {
		path = daemon.ConfigPath()
	}
	return daemon.LoadConfig(path)
}

// openApp builds the app for a one-shot command. Logs below warn are
// dropped unless --verbose.
func openApp() (*daemon.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}
	log, logCloser, err := daemon.NewLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	app, err := daemon.New(cfg, log)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	return app, func() {
		if err := app.Close(); err != nil {
			log.Warn("close", zap.Error(err))
		}
		_ = log.Sync()
		logCloser.Close()
	}, nil
}

func out(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}
