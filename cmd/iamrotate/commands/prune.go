package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/internal/config"
	"github.com/systmms/iamrotate/internal/keystore"
)

func NewPruneCommand(cfg *config.Config) *cobra.Command {
	var (
		execute bool
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete inactive access keys across every IAM user",
		Long: `Sweep the whole account for Inactive access keys and delete them in
bulk. This is the account-wide counterpart of the per-roster cleanup the
rotation pass performs.

Dry-run by default; --execute (plus a confirmation) deletes.`,
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

			usernames, err := gateway.ListUsernames(ctx)
			if err != nil {
				return err
			}
			logger.Debug("account has %d user(s)", len(usernames))

			type target struct {
				username string
				key      keystore.AccessKey
			}
			var targets []target

			for _, username := range usernames {
				keys, found, err := gateway.ListKeys(ctx, username)
				if err != nil {
					logger.Warn("%s: key lookup failed, skipping: %v", username, err)
					continue
				}
				if !found {
					continue
				}
				for _, key := range keys {
					if key.Inactive() {
						targets = append(targets, target{username: username, key: key})
					}
				}
			}

			if len(targets) == 0 {
				logger.Info("no inactive keys found")
				return nil
			}
			for _, t := range targets {
				logger.Info("%s: inactive key %s (created %s)", t.username, t.key.ID, t.key.CreatedAt.Format("2006-01-02"))
			}

			if !execute {
				logger.Info("dry run: %d inactive key(s) would be deleted (use --execute)", len(targets))
				return nil
			}
			if !yes && !confirm(cfg, fmt.Sprintf("Delete these %d inactive key(s)?", len(targets))) {
				logger.Warn("deletion declined, no changes made")
				return nil
			}

			failed := 0
			for _, t := range targets {
				if err := gateway.DeleteKey(ctx, t.username, t.key.ID); err != nil {
					logger.Error("%s: deleting %s failed: %v", t.username, t.key.ID, err)
					failed++
					continue
				}
				logger.Info("%s: deleted %s", t.username, t.key.ID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletion(s) failed", failed, len(targets))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&execute, "execute", false, "Delete the keys (default is dry-run)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
