package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/cmd/iamrotate/commands"
	"github.com/systmms/iamrotate/internal/config"
	"github.com/systmms/iamrotate/internal/logging"
	"github.com/systmms/iamrotate/internal/secure"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Wipe any enclave-held secrets on the way out, whatever the path.
	defer secure.Purge()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "iamrotate",
		Short: "Rotate AWS IAM access keys for a roster of human users",
		Long: `iamrotate inspects each roster user's IAM access keys, decides what
lifecycle action is due (prune disabled keys, disable superseded keys,
mint replacements for old ones) and delivers new credentials out-of-band
via a private paste plus an email.

Dry-run is the default; nothing touches IAM without --execute.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "iamrotate.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Non-interactive mode")

	rootCmd.AddCommand(
		commands.NewRunCommand(cfg),
		commands.NewUserCommand(cfg),
		commands.NewPruneCommand(cfg),
		commands.NewRosterCommand(cfg),
		commands.NewHistoryCommand(cfg),
		commands.NewLoginCommand(cfg),
		commands.NewLogoutCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
