package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/internal/batch"
	"github.com/systmms/iamrotate/internal/config"
	"github.com/systmms/iamrotate/internal/keystore"
	"github.com/systmms/iamrotate/internal/lifecycle"
	"github.com/systmms/iamrotate/internal/notify"
)

// newGateway builds the IAM gateway from configuration.
func newGateway(ctx context.Context, cfg *config.Config) (*keystore.IAMGateway, error) {
	aws := cfg.Definition.AWS
	return keystore.NewIAMGateway(ctx, keystore.AWSSettings{
		Region:          aws.Region,
		Endpoint:        aws.Endpoint,
		AccessKeyID:     aws.AccessKeyID,
		SecretAccessKey: aws.SecretAccessKey,
	})
}

// newNotifier wires the paste and email pipeline, or returns nil when
// delivery is not configured. Execution still proceeds without it; the
// orchestrator logs each undeliverable key instead.
func newNotifier(cfg *config.Config) (batch.Notifier, error) {
	paste := cfg.Definition.Paste
	smtp := cfg.Definition.SMTP

	if paste.Endpoint == "" && smtp.Host == "" {
		return nil, nil
	}
	if paste.Endpoint == "" || smtp.Host == "" {
		return nil, fmt.Errorf("notification needs both paste.endpoint and smtp.host configured")
	}

	paster := notify.NewPasteClient(notify.PasteConfig{
		Endpoint: paste.Endpoint,
		Token:    cfg.PasteToken(),
	})

	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:          smtp.Host,
		Port:          smtp.Port,
		Username:      smtp.Username,
		Password:      cfg.SMTPPassword(),
		From:          smtp.From,
		SubjectPrefix: smtp.SubjectPrefix,
	})
	if err := sender.Validate(); err != nil {
		return nil, fmt.Errorf("smtp configuration: %w", err)
	}

	return notify.NewPipeline(paster, sender, cfg.Logger), nil
}

// resolvePolicy merges the policy sources: explicit flag, then config
// file, then the built-in defaults.
func resolvePolicy(cmd *cobra.Command, cfg *config.Config, maxKeyAge, gracePeriod uint) lifecycle.Policy {
	pol := lifecycle.DefaultPolicy()

	if cfg.Definition != nil {
		if cfg.Definition.Policy.MaxKeyAgeDays > 0 {
			pol.MaxKeyAgeDays = cfg.Definition.Policy.MaxKeyAgeDays
		}
		if cfg.Definition.Policy.GracePeriodDays > 0 {
			pol.GracePeriodDays = cfg.Definition.Policy.GracePeriodDays
		}
	}

	if cmd.Flags().Changed("max-key-age") {
		pol.MaxKeyAgeDays = maxKeyAge
	}
	if cmd.Flags().Changed("grace-period") {
		pol.GracePeriodDays = gracePeriod
	}

	return pol
}

// confirm asks the operator a yes/no question on the terminal. In
// non-interactive mode the answer is always no: nothing destructive
// happens without an explicit --yes.
func confirm(cfg *config.Config, prompt string) bool {
	if cfg.NonInteractive {
		cfg.Logger.Warn("non-interactive mode, refusing without --yes")
		return false
	}
	fmt.Printf("%s (y/N): ", prompt)
	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(response)
	return response == "y" || response == "yes"
}
