package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// EventID computes the content-addressed event identifier: the
// lower-case hex encoding of BLAKE2b-256 over the wire ciphertext
// (§2). Because it hashes ciphertext rather than plaintext, re-sending
// the same plaintext through the same deterministic encryption yields
// the same event_id, which is how duplicate delivery is detected.
func EventID(ciphertext []byte) string {
	sum := blake2b.Sum256(ciphertext)
	return hex.EncodeToString(sum[:])
}

// Hash256 returns the raw 32-byte BLAKE2b-256 digest of data, used for
// dependency keys and other content fingerprints that aren't event IDs.
func Hash256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}
