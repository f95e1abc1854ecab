package cmd

import (
	"fmt"
	"os"

	"github.com/Ycseeasy/explore-with-me/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "server",
		Short: "explore-with-me server - event and participation backend",
		Long: `explore-with-me server hosts the event catalogue and the participation
request workflow: initiators publish events through moderation, users ask to
join them, and initiators confirm or reject requests against a participant limit.

Running without a subcommand starts the HTTP server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (optional, environment variables override it)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (json, console) (default: json)")

	serve := newServeCommand(flags)
	root.RunE = serve.RunE

	root.AddCommand(
		serve,
		newMigrateCommand(flags),
		newReconcileCommand(flags),
		newTokenCommand(flags),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI. It is called once by main.main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies flag overrides.
func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(f.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	return cfg, nil
}
