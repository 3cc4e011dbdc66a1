package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKeyIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	params := Argon2idParams{Time: 1, MemoryKiB: 8 * 1024, Threads: 1, KeyLen: KeySize}

	k1 := DeriveKey([]byte("correct horse battery staple"), salt, params)
	k2 := DeriveKey([]byte("correct horse battery staple"), salt, params)
	assert.Equal(t, k1, k2)
}

func TestDeriveKeyDiffersOnPassphrase(t *testing.T) {
	salt := []byte("0123456789abcdef")
	params := Argon2idParams{Time: 1, MemoryKiB: 8 * 1024, Threads: 1, KeyLen: KeySize}

	k1 := DeriveKey([]byte("passphrase-a"), salt, params)
	k2 := DeriveKey([]byte("passphrase-b"), salt, params)
	assert.NotEqual(t, k1, k2)
}
