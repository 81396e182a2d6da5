package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/internal/batch"
	"github.com/systmms/iamrotate/internal/config"
	iamerrors "github.com/systmms/iamrotate/internal/errors"
	"github.com/systmms/iamrotate/internal/report"
	"github.com/systmms/iamrotate/internal/roster"
)

func NewUserCommand(cfg *config.Config) *cobra.Command {
	var (
		name        string
		email       string
		iamUsername string
		maxKeyAge   uint
		gracePeriod uint
		execute     bool
		yes         bool
		reportPath  string
	)

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Run a rotation pass for a single user",
		Long: `Run the same pipeline as 'iamrotate run' for one user, without a
roster file. Missing identity fields are prompted for interactively.

Examples:
  iamrotate user --name "Ada Lovelace" --email ada@example.org --iam-username AdaLovelace
  iamrotate user --execute        # prompts for the three fields first`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			user := roster.User{Name: name, Email: email, IAMUsername: iamUsername}
			if err := fillUser(cfg, &user); err != nil {
				return err
			}
			if err := roster.Validate(user); err != nil {
				return iamerrors.UserError{
					Message:    fmt.Sprintf("Invalid user: %v", err),
					Suggestion: "Provide --name, --email and --iam-username",
				}
			}

			pol := resolvePolicy(cmd, cfg, maxKeyAge, gracePeriod)
			logger := cfg.Logger

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
			}

			orch := batch.New(gateway, notifier, logger)
			opts := batch.Options{Policy: pol, Execute: execute, Concurrency: 1}

			outcome, err := orch.Decide(ctx, []roster.User{user}, opts)
			if err != nil {
				return err
			}
			displayPlan(cfg, outcome)

			executed := false
			if execute && len(outcome.Passes) > 0 {
				if yes || confirm(cfg, fmt.Sprintf("Apply the actions above to %s?", user.IAMUsername)) {
					if err := orch.Execute(ctx, outcome, opts); err != nil {
						return err
					}
					executed = true
				} else {
					logger.Warn("execution declined, no changes made")
				}
			}

			if reportPath != "" {
				rep := report.New(outcome, pol, executed)
				if err := rep.Write(reportPath); err != nil {
					return err
				}
				logger.Info("wrote %s", reportPath)
			}

			if len(outcome.Fails) > 0 {
				row := outcome.Fails[0]
				return iamerrors.UserError{
					Message: fmt.Sprintf("%s: %s (%s)", row.IAMUsername, row.State, row.Reason),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name of the human")
	cmd.Flags().StringVar(&email, "email", "", "Email address to notify")
	cmd.Flags().StringVar(&iamUsername, "iam-username", "", "IAM account name")
	cmd.Flags().UintVar(&maxKeyAge, "max-key-age", 90, "Maximum key age in days before rotation")
	cmd.Flags().UintVar(&gracePeriod, "grace-period", 7, "Days the old key stays active after rotation")
	cmd.Flags().BoolVar(&execute, "execute", false, "Apply the decided actions (default is dry-run)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&reportPath, "report", "", "Optional report output path")

	return cmd
}

// fillUser prompts for any identity field not given as a flag.
func fillUser(cfg *config.Config, user *roster.User) error {
	fields := []struct {
		label string
		value *string
	}{
		{"name", &user.Name},
		{"email", &user.Email},
		{"iam-username", &user.IAMUsername},
	}

	reader := bufio.NewReader(os.Stdin)
	for _, field := range fields {
		if *field.value != "" {
			continue
		}
		if cfg.NonInteractive {
			return iamerrors.UserError{
				Message:    fmt.Sprintf("Missing --%s in non-interactive mode", field.label),
				Suggestion: "Pass all of --name, --email and --iam-username",
			}
		}
		fmt.Printf("%s: ", field.label)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading %s: %w", field.label, err)
		}
		*field.value = strings.TrimSpace(line)
	}
	return nil
}
