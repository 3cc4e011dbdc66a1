package crypto

import (
	"crypto"
	"crypto/subtle"
)

// KeyTypeDummy identifies the deterministic non-secret key pair used by
// tests that exercise the pipeline's crypto *shape* (sign, verify, seal,
// open) without paying for real randomness or wanting to assert exact
// ciphertext bytes across runs (§10.4).
const KeyTypeDummy KeyType = "Dummy"

const dummyTagLen = 32

// dummyKeyPair is a KeyPair whose "signature" is a deterministic BLAKE2b
// tag over the seed and message. It is never selected unless the
// process is explicitly configured with crypto_mode: dummy.
type dummyKeyPair struct {
	id   string
	seed [32]byte
}

// NewDummyKeyPair derives a deterministic key pair from id, so the same
// id always yields the same "key" across test runs and across
// processes in a multi-peer test harness.
func NewDummyKeyPair(id string) KeyPair {
	return &dummyKeyPair{id: id, seed: Hash256([]byte("quietcore-dummy-key:" + id))}
}

func (kp *dummyKeyPair) PublicKey() crypto.PublicKey  { return append([]byte(nil), kp.seed[:]...) }
func (kp *dummyKeyPair) PrivateKey() crypto.PrivateKey { return append([]byte(nil), kp.seed[:]...) }
func (kp *dummyKeyPair) Type() KeyType                 { return KeyTypeDummy }
func (kp *dummyKeyPair) ID() string                    { return kp.id }

func (kp *dummyKeyPair) Sign(message []byte) ([]byte, error) {
	tag := Hash256(append(append([]byte{}, kp.seed[:]...), message...))
	return tag[:], nil
}

func (kp *dummyKeyPair) Verify(message, signature []byte) error {
	want, _ := kp.Sign(message)
	if subtle.ConstantTimeCompare(want, signature) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// DummySeal "encrypts" plaintext for the dummy crypto mode: it appends
// a deterministic authentication tag but leaves the plaintext itself
// visible, so tests can assert on exact ciphertext bytes while still
// exercising tamper detection in OpenSymmetric-shaped call sites.
func DummySeal(key *[KeySize]byte, plaintext, aad []byte) []byte {
	tag := Hash256(append(append(append([]byte{}, key[:]...), aad...), plaintext...))
	out := make([]byte, 0, dummyTagLen+len(plaintext))
	out = append(out, tag[:]...)
	out = append(out, plaintext...)
	return out
}

// DummyOpen reverses DummySeal, reporting ErrDecryptFailed if the tag
// doesn't match.
func DummyOpen(key *[KeySize]byte, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < dummyTagLen {
		return nil, ErrDecryptFailed
	}
	tag, plaintext := sealed[:dummyTagLen], sealed[dummyTagLen:]
	want := Hash256(append(append(append([]byte{}, key[:]...), aad...), plaintext...))
	if subtle.ConstantTimeCompare(want[:], tag) != 1 {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
