package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/internal/config"
	"github.com/systmms/iamrotate/internal/report"
)

func NewHistoryCommand(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived rotation runs",
		Long: `Show the archive of past rotation passes, newest first. Every
'iamrotate run' stores its report here in addition to the --report file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			logger := cfg.Logger

			history := report.NewHistory(historyDir(cfg))
			entries, err := history.List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				logger.Info("no archived runs in %s", historyDir(cfg))
				return nil
			}

			for _, entry := range entries {
				mode := "dry-run"
				if entry.Executed {
					mode = "executed"
				}
				logger.Info("%s  %s  %s  %d passed, %d failed, %d notified",
					entry.GeneratedAt.Format("2006-01-02 15:04:05"),
					entry.RunID,
					mode,
					entry.Passes, entry.Fails, entry.Notified)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show (0 for all)")

	return cmd
}
