package crypto

import "golang.org/x/crypto/argon2"

// Argon2idParams are the cost parameters for local key-at-rest
// derivation. The defaults follow the OWASP baseline recommendation
// for interactive logins (1 iteration is too weak; this trades off
// daemon startup latency against resistance to offline guessing of a
// lost passphrase).
type Argon2idParams struct {
	Time    uint32
	MemoryKiB uint32
	Threads uint8
	KeyLen  uint32
}

// DefaultArgon2idParams returns a conservative parameter set suitable
// for deriving a local storage key from an operator-supplied passphrase.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:      2,
		MemoryKiB: 64 * 1024,
		Threads:   2,
		KeyLen:    KeySize,
	}
}

// DeriveKey runs Argon2id over passphrase with salt, producing a key
// suitable for SealSymmetric/OpenSymmetric. salt must be unique per
// passphrase (a random 16+ byte value stored alongside the derived
// ciphertext is sufficient).
func DeriveKey(passphrase, salt []byte, params Argon2idParams) []byte {
	return argon2.IDKey(passphrase, salt, params.Time, params.MemoryKiB, params.Threads, params.KeyLen)
}
