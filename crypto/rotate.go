package crypto

import "time"

// KeyRotationConfig controls how an identity key rotation retains the
// key it replaces.
type KeyRotationConfig struct {
	KeepOldKeys bool
}

// KeyRotationEvent records one identity key rotation.
type KeyRotationEvent struct {
	Timestamp time.Time
	OldKeyID  string
	NewKeyID  string
	Reason    string
}

// KeyRotator rotates a stored identity key pair, keeping a history of
// past rotations.
type KeyRotator interface {
	Rotate(id string) (KeyPair, error)
	SetRotationConfig(config KeyRotationConfig)
	GetRotationHistory(id string) ([]KeyRotationEvent, error)
}
