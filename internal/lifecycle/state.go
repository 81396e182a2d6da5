// Package lifecycle holds the credential lifecycle state machine: the
// pure decision function that maps a user's current key snapshot and the
// rotation policy to a state label and an ordered action list, plus the
// executor that applies those actions through the keystore gateway.
package lifecycle

// State labels the outcome of deciding one user. It is derived from the
// live key snapshot on every run, never stored authoritatively.
type State string

const (
	// StateUnknown flags an unhandled snapshot shape (program error).
	StateUnknown State = "?"

	StateIdeal       State = "ideal"
	StateGracePeriod State = "in-grace-period"

	StateAllCredentialsActive State = "all-credentials-active"
	StateNoCredentialsActive  State = "no-credentials-active"
	StateOldCredentials       State = "old-credentials"
	StateNoCredentials        State = "no-credentials"
	StateUserNotFound         State = "user-not-found"

	// StateManyCredentials flags three or more keys (program error).
	StateManyCredentials State = "many-credentials"
)

var stateDescriptions = map[State]string{
	StateIdeal:                "1 active set of credentials younger than max age of credentials",
	StateGracePeriod:          "two active sets of credentials, one set created in the last $grace-period days",
	StateAllCredentialsActive: "two active sets of credentials, both sets older than $grace-period days",
	StateNoCredentialsActive:  "credentials present but none are active",
	StateOldCredentials:       "credentials are old and will be rotated",
	StateNoCredentials:        "no credentials exist",
	StateUserNotFound:         "user does not exist in the identity provider",

	// bad states
	StateManyCredentials: "more than 2 sets of credentials exist (program error)",
	StateUnknown:         "credentials are in an unhandled state (program error)",
}

// Description returns the human-readable reason text for the state.
func (s State) Description() string {
	if d, ok := stateDescriptions[s]; ok {
		return d
	}
	return stateDescriptions[StateUnknown]
}

// Failed reports whether the state marks the row as a failed decision.
// Failed rows are recorded and skipped; they never reach the executor.
func (s State) Failed() bool {
	switch s {
	case StateUserNotFound, StateNoCredentials, StateManyCredentials, StateUnknown:
		return true
	}
	return false
}

// Policy is the run-wide rotation configuration.
type Policy struct {
	// MaxKeyAgeDays is the age in whole days past which a sole active
	// key is due for rotation.
	MaxKeyAgeDays uint `json:"max_key_age_days"`

	// GracePeriodDays is how long after a new key's creation the old
	// key stays valid, so the user can migrate without lockout.
	GracePeriodDays uint `json:"grace_period_days"`
}

// DefaultPolicy mirrors the long-standing operational defaults.
func DefaultPolicy() Policy {
	return Policy{MaxKeyAgeDays: 90, GracePeriodDays: 7}
}
