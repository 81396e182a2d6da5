package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/internal/batch"
	"github.com/systmms/iamrotate/internal/config"
	iamerrors "github.com/systmms/iamrotate/internal/errors"
	"github.com/systmms/iamrotate/internal/metrics"
	"github.com/systmms/iamrotate/internal/report"
	"github.com/systmms/iamrotate/internal/roster"
)

func NewRunCommand(cfg *config.Config) *cobra.Command {
	var (
		rosterPath    string
		maxKeyAge     uint
		gracePeriod   uint
		execute       bool
		yes           bool
		reportPath    string
		concurrency   int
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a rotation pass over a roster of users",
		Long: `Run one batch pass: decide the lifecycle action for every roster user
and write a JSON report of passes and failures.

By default this is a dry run and IAM is never mutated. With --execute the
decided actions are applied (after a confirmation prompt, unless --yes)
and users who received a new key are notified via paste + email.

Examples:
  # See what would happen
  iamrotate run --roster humans.csv

  # Rotate for real, with a stricter policy
  iamrotate run --roster humans.csv --max-key-age 60 --grace-period 5 --execute

  # Unattended execution (cron)
  iamrotate run --roster humans.csv --execute --yes --non-interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			users, err := roster.Load(rosterPath)
			if err != nil {
				return err
			}

			pol := resolvePolicy(cmd, cfg, maxKeyAge, gracePeriod)
			if !cmd.Flags().Changed("report") && cfg.Definition.Report.Path != "" {
				reportPath = cfg.Definition.Report.Path
			}
			logger := cfg.Logger
			logger.Debug("policy: max key age %dd, grace period %dd", pol.MaxKeyAgeDays, pol.GracePeriodDays)

			ctx := cmd.Context()
			gateway, err := newGateway(ctx, cfg)
			if err != nil {
				return err
			}

			var notifier batch.Notifier
			if execute {
				notifier, err = newNotifier(cfg)
				if err != nil {
					return err
				}
				if notifier == nil {
					logger.Warn("paste/email delivery is not configured; new keys will be created but not delivered")
				}
			}

			metrics.InitMetrics()
			if metricsListen != "" {
				serverConfig := metrics.DefaultServerConfig()
				serverConfig.Addr = metricsListen
				metricsServer := metrics.NewServer(serverConfig, logger)
				if err := metricsServer.Start(); err != nil {
					return fmt.Errorf("starting metrics server on %s: %w", metricsListen, err)
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					_ = metricsServer.Stop(shutdownCtx)
				}()
				logger.Info("serving metrics on http://%s%s", metricsListen, serverConfig.Path)
			}

			orch := batch.New(gateway, notifier, logger)
			opts := batch.Options{Policy: pol, Execute: execute, Concurrency: concurrency}

			outcome, err := orch.Decide(ctx, users, opts)
			if err != nil {
				return err
			}
			displayPlan(cfg, outcome)

			executed := false
			if execute {
				if yes || confirm(cfg, fmt.Sprintf("Apply the actions above to %d user(s)?", len(outcome.Passes))) {
					if err := orch.Execute(ctx, outcome, opts); err != nil {
						return err
					}
					executed = true
				} else {
					logger.Warn("execution declined, no changes made")
				}
			}

			rep := report.New(outcome, pol, executed)
			if err := rep.Write(reportPath); err != nil {
				return err
			}
			logger.Info("wrote %s", reportPath)

			history := report.NewHistory(historyDir(cfg))
			if err := history.Save(rep); err != nil {
				logger.Warn("could not archive run: %v", err)
			}

			if len(outcome.Fails) > 0 {
				return iamerrors.UserError{
					Message:    fmt.Sprintf("%d of %d user(s) could not be decided", len(outcome.Fails), len(users)),
					Suggestion: fmt.Sprintf("See the fails section of %s for per-user reasons", reportPath),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rosterPath, "roster", "", "Roster CSV path (required)")
	cmd.Flags().UintVar(&maxKeyAge, "max-key-age", 90, "Maximum key age in days before rotation")
	cmd.Flags().UintVar(&gracePeriod, "grace-period", 7, "Days the old key stays active after rotation")
	cmd.Flags().BoolVar(&execute, "execute", false, "Apply the decided actions (default is dry-run)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&reportPath, "report", "report.json", "Report output path")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parallel key lookups")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address for the duration of the run")

	_ = cmd.MarkFlagRequired("roster")

	return cmd
}

// displayPlan prints the decided actions so the operator knows exactly
// what a confirmation would apply.
func displayPlan(cfg *config.Config, outcome *batch.Outcome) {
	logger := cfg.Logger

	for _, row := range outcome.Passes {
		if len(row.Actions) == 0 {
			logger.Info("%s: %s", row.IAMUsername, row.State)
			continue
		}
		actions := make([]string, 0, len(row.Actions))
		for _, action := range row.Actions {
			actions = append(actions, action.String())
		}
		logger.Info("%s: %s → %v", row.IAMUsername, row.State, actions)
	}
	for _, row := range outcome.Fails {
		logger.Error("%s: %s (%s)", row.IAMUsername, row.State, row.Reason)
	}
}

func historyDir(cfg *config.Config) string {
	if cfg.Definition != nil && cfg.Definition.Report.HistoryDir != "" {
		return cfg.Definition.Report.HistoryDir
	}
	return report.DefaultHistoryDir()
}
