package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/iamrotate/internal/config"
	iamerrors "github.com/systmms/iamrotate/internal/errors"
	"github.com/systmms/iamrotate/internal/logging"
)

func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login [paste|smtp]",
		Short: "Store a delivery credential in the OS keyring",
		Long: `Save the paste service token or the SMTP password in the operating
system keyring, so neither has to live in the config file or the
environment.

Examples:
  iamrotate login paste          # prompts for the token
  iamrotate login smtp --token-stdin < password.txt`,
		ValidArgs: []string{config.KeyringPaste, config.KeyringSMTP},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := args[0]
			logger := cfg.Logger

			value := token
			if cmd.Flags().Changed("token-stdin") {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token from stdin: %w", err)
				}
				value = strings.TrimSpace(line)
			} else if value == "" {
				if cfg.NonInteractive {
					return iamerrors.UserError{
						Message:    "No token given in non-interactive mode",
						Suggestion: "Pass --token or --token-stdin",
					}
				}
				fmt.Printf("%s token: ", account)
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("reading token: %w", err)
				}
				value = strings.TrimSpace(line)
			}
			if value == "" {
				return iamerrors.UserError{
					Message: "Refusing to store an empty token",
				}
			}

			logger.Debug("storing token for %s: %s", account, logging.Secret(value))
			if err := config.StoreToken(account, value); err != nil {
				return iamerrors.UserError{
					Message:    fmt.Sprintf("Could not store the %s token: %v", account, err),
					Suggestion: "Check that an OS keyring service is available",
					Err:        err,
				}
			}
			logger.Info("stored %s token in the OS keyring", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Token value (prompted for when omitted)")
	cmd.Flags().Bool("token-stdin", false, "Read the token from the first line of stdin")

	return cmd
}

func NewLogoutCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "logout [paste|smtp]",
		Short:     "Remove a delivery credential from the OS keyring",
		ValidArgs: []string{config.KeyringPaste, config.KeyringSMTP},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := args[0]
			if err := config.DeleteToken(account); err != nil {
				return iamerrors.UserError{
					Message:    fmt.Sprintf("Could not remove the %s token: %v", account, err),
					Suggestion: "The token may not be stored; 'iamrotate login' stores it",
					Err:        err,
				}
			}
			cfg.Logger.Info("removed %s token from the OS keyring", account)
			return nil
		},
	}

	return cmd
}
