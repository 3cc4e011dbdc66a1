// Package rotation provides identity-key rotation (a peer replacing
// its own long-term signing key) and group-key epoch rotation (a group
// advancing its shared event-layer key without redistributing full new
// secrets to every member).
package rotation

import (
	"fmt"
	"sync"
	"time"

	sagecrypto "github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/crypto/keys"
)

// keyRotator implements sagecrypto.KeyRotator for identity keys.
type keyRotator struct {
	storage  sagecrypto.KeyStorage
	config   sagecrypto.KeyRotationConfig
	history  map[string][]sagecrypto.KeyRotationEvent
	mu       sync.RWMutex
	rotating map[string]bool
}

// NewKeyRotator creates an identity key rotator backed by storage.
func NewKeyRotator(storage sagecrypto.KeyStorage) sagecrypto.KeyRotator {
	return &keyRotator{
		storage:  storage,
		config:   sagecrypto.KeyRotationConfig{KeepOldKeys: false},
		history:  make(map[string][]sagecrypto.KeyRotationEvent),
		rotating: make(map[string]bool),
	}
}

// Rotate replaces the stored key for id with a freshly generated key
// of the same type.
func (r *keyRotator) Rotate(id string) (sagecrypto.KeyPair, error) {
	r.mu.Lock()
	if r.rotating[id] {
		r.mu.Unlock()
		return nil, fmt.Errorf("rotation: key %s is already being rotated", id)
	}
	r.rotating[id] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.rotating, id)
		r.mu.Unlock()
	}()

	oldKeyPair, err := r.storage.Load(id)
	if err != nil {
		return nil, err
	}

	var newKeyPair sagecrypto.KeyPair
	switch oldKeyPair.Type() {
	case sagecrypto.KeyTypeEd25519:
		newKeyPair, err = keys.GenerateEd25519KeyPair()
	case sagecrypto.KeyTypeSecp256k1:
		newKeyPair, err = keys.GenerateSecp256k1KeyPair()
	default:
		return nil, fmt.Errorf("rotation: unsupported key type for rotation: %s", oldKeyPair.Type())
	}
	if err != nil {
		return nil, fmt.Errorf("rotation: generate new key: %w", err)
	}

	if r.config.KeepOldKeys {
		oldKeyID := fmt.Sprintf("%s.old.%s", id, oldKeyPair.ID())
		if err := r.storage.Store(oldKeyID, oldKeyPair); err != nil {
			return nil, fmt.Errorf("rotation: store old key: %w", err)
		}
	}
	if err := r.storage.Store(id, newKeyPair); err != nil {
		return nil, fmt.Errorf("rotation: store new key: %w", err)
	}

	r.mu.Lock()
	r.history[id] = append(r.history[id], sagecrypto.KeyRotationEvent{
		Timestamp: time.Now(),
		OldKeyID:  oldKeyPair.ID(),
		NewKeyID:  newKeyPair.ID(),
		Reason:    "Manual rotation",
	})
	r.mu.Unlock()

	return newKeyPair, nil
}

func (r *keyRotator) SetRotationConfig(config sagecrypto.KeyRotationConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
}

func (r *keyRotator) GetRotationHistory(id string) ([]sagecrypto.KeyRotationEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history, exists := r.history[id]
	if !exists {
		return []sagecrypto.KeyRotationEvent{}, nil
	}
	result := make([]sagecrypto.KeyRotationEvent, len(history))
	for i, event := range history {
		result[len(history)-1-i] = event
	}
	return result, nil
}
