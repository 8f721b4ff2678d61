package lifecycle

import (
	"crypto/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// KeyVault holds per-record encryption keys. Cryptographic erasure destroys
// the key, rendering the encrypted payload permanently unrecoverable without
// touching the storage bytes. Destroying an absent key is a no-op success.
type KeyVault struct {
	mu   sync.Mutex
	keys map[string][]byte
}

// NewKeyVault creates an empty vault
func NewKeyVault() *KeyVault {
	return &KeyVault{keys: make(map[string][]byte)}
}

// CreateKey mints a fresh 256-bit key and returns its id
func (kv *KeyVault) CreateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", errors.NewInternalError("failed to generate encryption key")
	}

	id := uuid.NewString()
	kv.mu.Lock()
	kv.keys[id] = key
	kv.mu.Unlock()
	return id, nil
}

// DestroyKey zeroizes and removes the key. Idempotent.
func (kv *KeyVault) DestroyKey(id string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if key, ok := kv.keys[id]; ok {
		for i := range key {
			key[i] = 0
		}
		delete(kv.keys, id)
	}
}

// HasKey reports whether the key still exists
func (kv *KeyVault) HasKey(id string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.keys[id]
	return ok
}
