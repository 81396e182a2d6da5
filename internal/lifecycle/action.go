package lifecycle

import "fmt"

// ActionKind discriminates the closed set of lifecycle actions.
type ActionKind string

const (
	ActionDelete  ActionKind = "delete"
	ActionDisable ActionKind = "disable"
	ActionCreate  ActionKind = "create"
)

// Action is one step of a user's rotation sequence. Delete and Disable
// target an existing key; Create has no target. Ordering within a
// sequence is significant and preserved end-to-end.
type Action struct {
	Kind  ActionKind `json:"action"`
	KeyID string     `json:"key_id,omitempty"`
}

func (a Action) String() string {
	if a.KeyID == "" {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s %s", a.Kind, a.KeyID)
}

// Delete removes the key with the given id.
func Delete(keyID string) Action {
	return Action{Kind: ActionDelete, KeyID: keyID}
}

// Disable marks the key with the given id inactive.
func Disable(keyID string) Action {
	return Action{Kind: ActionDisable, KeyID: keyID}
}

// Create mints a new key for the user.
func Create() Action {
	return Action{Kind: ActionCreate}
}
