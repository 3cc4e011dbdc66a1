package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the width in bytes of a transit or event symmetric key.
const KeySize = 32

// nonceSize is XSalsa20-Poly1305's nonce width.
const nonceSize = 24

// SealSymmetric encrypts plaintext under key using XSalsa20-Poly1305
// (NaCl secretbox), as used for both the per-network transit layer and
// the per-group/per-peer event layer (§3). The returned ciphertext is
// nonce||box and authenticates aad by folding it into the sealed
// message rather than as separate AEAD associated data, matching
// secretbox's lack of an AAD parameter.
func SealSymmetric(key *[KeySize]byte, plaintext, aad []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	msg := make([]byte, 0, len(aad)+len(plaintext))
	msg = append(msg, aad...)
	msg = append(msg, plaintext...)

	sealed := secretbox.Seal(nonce[:], msg, &nonce, key)
	return sealed, nil
}

// OpenSymmetric reverses SealSymmetric. The first aadLen bytes of the
// recovered message are the aad supplied at seal time; they are cut
// off by length and returned to no one — their content is not compared
// against any expected value.
func OpenSymmetric(key *[KeySize]byte, sealed []byte, aadLen int) (plaintext []byte, err error) {
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecryptFailed)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	msg, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	if len(msg) < aadLen {
		return nil, fmt.Errorf("%w: opened message shorter than aad", ErrDecryptFailed)
	}
	return msg[aadLen:], nil
}

// DeriveKeyArray copies a variable-length key into the fixed-size array
// secretbox requires, panicking if the source is not exactly KeySize
// bytes: callers are expected to have already validated key material
// length before reaching the AEAD boundary.
func DeriveKeyArray(key []byte) *[KeySize]byte {
	if len(key) != KeySize {
		panic(fmt.Sprintf("crypto: key must be %d bytes, got %d", KeySize, len(key)))
	}
	var arr [KeySize]byte
	copy(arr[:], key)
	return &arr
}
