package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventIDIsDeterministic(t *testing.T) {
	ct := []byte("ciphertext-bytes")
	assert.Equal(t, EventID(ct), EventID(ct))
}

func TestEventIDDiffersOnDifferentInput(t *testing.T) {
	assert.NotEqual(t, EventID([]byte("a")), EventID([]byte("b")))
}

func TestEventIDIsHex64Chars(t *testing.T) {
	id := EventID([]byte("x"))
	assert.Len(t, id, 64)
}
