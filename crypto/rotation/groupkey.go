package rotation

import (
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	sagecrypto "github.com/quiet-mesh/quietcore/crypto"
)

// GroupEpochKey is one epoch of a group's event-layer secret: a scalar
// on the Ed25519 group, together with the epoch number it belongs to.
// Advancing an epoch multiplies the current scalar by a fresh random
// blinding factor, so a member who only knows epoch N's scalar cannot
// derive epoch N+1's key on its own — the blinding factor has to reach
// it through a sealed `key` event (§11.7).
type GroupEpochKey struct {
	Epoch  uint64
	Scalar *edwards25519.Scalar
}

// NewGroupSecret creates epoch 0 of a new group's key schedule from
// fresh randomness.
func NewGroupSecret() (*GroupEpochKey, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("rotation: read group secret randomness: %w", err)
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(buf[:])
	if err != nil {
		return nil, fmt.Errorf("rotation: derive group scalar: %w", err)
	}
	return &GroupEpochKey{Epoch: 0, Scalar: s}, nil
}

// AdvanceEpoch blinds current forward into a new epoch, returning the
// new epoch key and the blinding factor that must be sealed to every
// remaining member so they can reproduce the same scalar.
func AdvanceEpoch(current *GroupEpochKey) (next *GroupEpochKey, blindFactor []byte, err error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, nil, fmt.Errorf("rotation: read blinding randomness: %w", err)
	}
	blind, err := edwards25519.NewScalar().SetUniformBytes(buf[:])
	if err != nil {
		return nil, nil, fmt.Errorf("rotation: derive blinding scalar: %w", err)
	}

	nextScalar := edwards25519.NewScalar().Multiply(current.Scalar, blind)
	return &GroupEpochKey{Epoch: current.Epoch + 1, Scalar: nextScalar}, blind.Bytes(), nil
}

// ApplyBlindFactor reproduces the next epoch's scalar on a member that
// already holds the current epoch, given the blinding factor the
// member received via a sealed `key` event.
func ApplyBlindFactor(current *GroupEpochKey, blindFactor []byte) (*GroupEpochKey, error) {
	blind := edwards25519.NewScalar()
	if _, err := blind.SetCanonicalBytes(blindFactor); err != nil {
		return nil, fmt.Errorf("rotation: decode blinding factor: %w", err)
	}
	nextScalar := edwards25519.NewScalar().Multiply(current.Scalar, blind)
	return &GroupEpochKey{Epoch: current.Epoch + 1, Scalar: nextScalar}, nil
}

// EventKey derives the 32-byte event-layer symmetric key for this
// epoch, binding in the group ID so two groups that happened to share
// a scalar (astronomically unlikely, but cheap to rule out) never
// derive the same key.
func (k *GroupEpochKey) EventKey(groupID string) *[sagecrypto.KeySize]byte {
	context := fmt.Sprintf("quietcore-group-event-key:%s:%d", groupID, k.Epoch)
	digest := sagecrypto.Hash256(append(k.Scalar.Bytes(), []byte(context)...))
	return &digest
}
