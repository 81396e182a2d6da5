package config

import (
	"os"

	"github.com/zalando/go-keyring"
)

// keyringService is the OS keyring service name all tokens live under.
const keyringService = "iamrotate"

// Keyring account names for the two tokens the tool needs.
const (
	KeyringPaste = "paste"
	KeyringSMTP  = "smtp"
)

// StoreToken saves a token in the OS keyring.
func StoreToken(account, token string) error {
	return keyring.Set(keyringService, account, token)
}

// DeleteToken removes a token from the OS keyring.
func DeleteToken(account string) error {
	return keyring.Delete(keyringService, account)
}

// lookupToken resolves a credential: explicit environment variable
// first, then the OS keyring, then the config literal. Environment wins
// so CI can override whatever a workstation has stored.
func lookupToken(envName, account, literal string) string {
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v
		}
	}
	if v, err := keyring.Get(keyringService, account); err == nil && v != "" {
		return v
	}
	return literal
}

// PasteToken resolves the paste service token.
func (c *Config) PasteToken() string {
	if c.Definition == nil {
		return ""
	}
	return lookupToken(c.Definition.Paste.TokenEnv, KeyringPaste, c.Definition.Paste.Token)
}

// SMTPPassword resolves the mail relay password.
func (c *Config) SMTPPassword() string {
	if c.Definition == nil {
		return ""
	}
	return lookupToken(c.Definition.SMTP.PasswordEnv, KeyringSMTP, c.Definition.SMTP.Password)
}
