package commands

import (
	"fmt"
	"os"
	"sort"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/internal/config"
	"github.com/systmms/iamrotate/internal/roster"
)

// rootAccountUser is the credential report's name for the account root;
// it cannot be rotated through IAM and never belongs in a roster.
const rootAccountUser = "<root_account>"

func NewRosterCommand(cfg *config.Config) *cobra.Command {
	var (
		outPath string
		merge   string
	)

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Generate a roster CSV from the IAM credential report",
		Long: `Build the three-column roster for 'iamrotate run' out of the account's
IAM credential report.

Accounts without any live credential are dropped. Accounts whose name has
fewer than two uppercase letters are assumed to be machines, not humans,
unless listed under roster.human_exceptions in the config. Names and
emails are merged in from an existing roster when one is present; fill in
the blanks by hand before running a pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			logger := cfg.Logger

			ctx := cmd.Context()
			gateway, err := newGateway(ctx, cfg)
			if err != nil {
				return err
			}

			logger.Info("requesting credential report")
			credReport, err := gateway.CredentialReport(ctx, 2*time.Second)
			if err != nil {
				return err
			}
			logger.Debug("report generated at %s, %d account(s)", credReport.GeneratedAt.Format(time.RFC3339), len(credReport.Rows))

			exceptions := map[string]bool{}
			if cfg.Definition.Roster.HumanExceptions != nil {
				for _, name := range cfg.Definition.Roster.HumanExceptions {
					exceptions[name] = true
				}
			}

			var humans, machines, noAccess int
			var selected []string
			for _, row := range credReport.Rows {
				switch {
				case row.User == rootAccountUser:
					continue
				case !row.HasAccess():
					noAccess++
				case exceptions[row.User] || looksHuman(row.User):
					humans++
					selected = append(selected, row.User)
				default:
					machines++
				}
			}
			sort.Strings(selected)
			logger.Info("%d human(s), %d machine account(s), %d without access", humans, machines, noAccess)

			mergePath := merge
			if mergePath == "" {
				mergePath = outPath
			}
			known := loadKnownUsers(cfg, mergePath)

			users := make([]roster.User, 0, len(selected))
			for _, username := range selected {
				user := roster.User{IAMUsername: username}
				if existing, ok := known[username]; ok {
					user.Name = existing.Name
					user.Email = existing.Email
				}
				users = append(users, user)
			}

			fh, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}
			defer fh.Close()
			if err := roster.Write(fh, users); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}

			logger.Info("wrote %s", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "humans.csv", "Roster output path")
	cmd.Flags().StringVar(&merge, "merge", "", "Existing roster to take names/emails from (defaults to --out)")

	return cmd
}

// looksHuman applies the account naming heuristic: human accounts are
// FirstnameLastname style, machine accounts are lowercase-with-dashes.
func looksHuman(username string) bool {
	upper := 0
	for _, r := range username {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper >= 2
}

// loadKnownUsers indexes an existing roster by IAM username. The file
// may be half-filled or invalid; this is best-effort input to a file the
// operator reviews anyway.
func loadKnownUsers(cfg *config.Config, path string) map[string]roster.User {
	known := map[string]roster.User{}

	fh, err := os.Open(path)
	if err != nil {
		return known
	}
	defer fh.Close()

	users, err := roster.Read(fh)
	if err != nil {
		cfg.Logger.Debug("not merging %s: %v", path, err)
		return known
	}
	for _, user := range users {
		known[user.IAMUsername] = user
	}
	return known
}
