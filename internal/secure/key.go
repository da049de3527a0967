package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed Key is used.
var ErrDestroyed = errors.New("secure: key destroyed")

// ErrEmptyKey is returned by NewKey for zero-length input.
var ErrEmptyKey = errors.New("secure: empty key")

// Key keeps cipher key material sealed in a memguard enclave between uses.
// The plaintext only exists inside the callback passed to Use.
type Key struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// NewKey seals a copy of material. The caller's slice is left untouched.
func NewKey(material []byte) (*Key, error) {
	if len(material) == 0 {
		return nil, ErrEmptyKey
	}
	// memguard wipes the source buffer, so hand it a copy
	buf := make([]byte, len(material))
	copy(buf, material)

	return &Key{enclave: memguard.NewEnclave(buf)}, nil
}

// Use opens the enclave, passes the plaintext to fn and wipes it again
// before returning. fn must not retain the slice.
func (k *Key) Use(fn func(material []byte) error) error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed {
		return ErrDestroyed
	}

	locked, err := k.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is idempotent; later calls to Use fail.
func (k *Key) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.enclave = nil
	k.destroyed = true
}
