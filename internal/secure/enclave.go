// Package secure wraps memguard so that a freshly created access-key
// secret lives encrypted in locked memory between the IAM CreateAccessKey
// call and the moment it is published to the paste service. Nothing else
// in the program ever holds the secret as a plain string.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Enclave is a protected container for one secret value. The plaintext is
// encrypted at rest in memory (XSalsa20Poly1305) and the backing pages are
// mlocked where the platform allows it.
type Enclave struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewEnclave seals the given bytes into a protected enclave. memguard wipes
// the input slice, so the caller must not reuse it.
func NewEnclave(data []byte) *Enclave {
	return &Enclave{enclave: memguard.NewEnclave(data)}
}

// Open decrypts the secret into a locked buffer. The caller must call
// Destroy() on the returned buffer as soon as the plaintext has been used.
func (e *Enclave) Open() (*memguard.LockedBuffer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return e.enclave.Open()
}

// Destroy marks the enclave as unusable. Called immediately after a
// successful paste publish so the secret cannot reach any later pipeline
// stage. Idempotent; after Destroy, Open returns an empty buffer.
func (e *Enclave) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return
	}
	e.enclave = nil
	e.destroyed = true
}

// Destroyed reports whether the enclave has been redacted.
func (e *Enclave) Destroyed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.destroyed
}

// Purge wipes all memguard-managed memory. Deferred in main().
func Purge() {
	memguard.Purge()
}
