// Package keystore talks to the identity provider's access-key store.
// The rest of the program only sees the Gateway interface; the AWS IAM
// implementation lives in iam.go.
package keystore

import (
	"context"
	"time"

	"github.com/systmms/iamrotate/internal/secure"
)

// KeyStatus is the provider-side status of an access key.
type KeyStatus string

const (
	StatusActive   KeyStatus = "Active"
	StatusInactive KeyStatus = "Inactive"
)

// AccessKey is a read-only snapshot of one access key, fetched at the
// start of processing a user. It is never mutated locally; mutations go
// through the Gateway and are re-observed on the next run.
type AccessKey struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Status    KeyStatus `json:"status"`
}

// Inactive reports whether the key is disabled. Anything that is not
// explicitly Inactive counts as active, matching the provider's own
// semantics for unknown statuses.
func (k AccessKey) Inactive() bool {
	return k.Status == StatusInactive
}

// NewKey is the result of creating an access key. The secret is sealed
// into an enclave by the gateway; it exists as plaintext only inside the
// provider response and is wiped as soon as it is sealed.
type NewKey struct {
	ID     string
	Secret *secure.Enclave
}

// Gateway is the capability set the rotation core requires from the
// identity provider, one user at a time.
type Gateway interface {
	// ListKeys returns the user's access keys. found is false when the
	// user does not exist, which is distinct from an existing user with
	// zero keys.
	ListKeys(ctx context.Context, username string) (keys []AccessKey, found bool, err error)

	DeleteKey(ctx context.Context, username, keyID string) error

	DisableKey(ctx context.Context, username, keyID string) error

	// CreateKey mints a new access key for the user. The secret is
	// returned exactly once by the provider and never again.
	CreateKey(ctx context.Context, username string) (NewKey, error)
}
