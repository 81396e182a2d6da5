package config

import (
	"os"

	"gopkg.in/yaml.v3"

	iamerrors "github.com/systmms/iamrotate/internal/errors"
	"github.com/systmms/iamrotate/internal/logging"
)

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the iamrotate.yaml structure.
type Definition struct {
	Version int          `yaml:"version"`
	Policy  PolicyConfig `yaml:"policy,omitempty"`
	AWS     AWSConfig    `yaml:"aws,omitempty"`
	Paste   PasteConfig  `yaml:"paste,omitempty"`
	SMTP    SMTPConfig   `yaml:"smtp,omitempty"`
	Roster  RosterConfig `yaml:"roster,omitempty"`
	Report  ReportConfig `yaml:"report,omitempty"`
}

// PolicyConfig carries the rotation policy defaults. Command-line flags
// override both fields.
type PolicyConfig struct {
	MaxKeyAgeDays   uint `yaml:"max_key_age_days,omitempty"`
	GracePeriodDays uint `yaml:"grace_period_days,omitempty"`
}

// AWSConfig holds identity provider connection settings. Endpoint and
// the static credential pair exist for LocalStack and tests.
type AWSConfig struct {
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// PasteConfig holds paste service settings. The token itself should live
// in the OS keyring ('iamrotate login paste') or in the environment
// variable named by token_env; the literal token field is a last resort
// for throwaway setups.
type PasteConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// SMTPConfig holds mail relay settings. Same token story as paste:
// keyring first, then password_env, then the literal field.
type SMTPConfig struct {
	Host          string `yaml:"host,omitempty"`
	Port          int    `yaml:"port,omitempty"`
	Username      string `yaml:"username,omitempty"`
	PasswordEnv   string `yaml:"password_env,omitempty"`
	Password      string `yaml:"password,omitempty"`
	From          string `yaml:"from,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// RosterConfig tunes roster generation from the credential report.
type RosterConfig struct {
	// HumanExceptions are account names that look like machines but are
	// humans, kept in the roster regardless of the naming heuristic.
	HumanExceptions []string `yaml:"human_exceptions,omitempty"`
}

// ReportConfig controls where run output lands.
type ReportConfig struct {
	// Path is the default report file ('iamrotate run --report' overrides).
	Path string `yaml:"path,omitempty"`

	// HistoryDir overrides the XDG default archive location.
	HistoryDir string `yaml:"history_dir,omitempty"`
}

// Load reads and parses the iamrotate.yaml file. A missing file is not
// an error: every setting has a usable default and a pure dry-run needs
// no configuration at all.
func (c *Config) Load() error {
	if c.Definition != nil {
		return nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Definition = &Definition{}
			return nil
		}
		return iamerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return iamerrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return iamerrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your iamrotate.yaml file",
		}
	}

	c.Definition = &def
	return nil
}
