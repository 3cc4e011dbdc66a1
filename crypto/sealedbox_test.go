package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealForPeerRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	plaintext := []byte("group event key material")
	packet, err := SealForPeer(pub, plaintext)
	require.NoError(t, err)

	got, err := OpenSealed(priv, packet)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpenSealedRejectsWrongRecipient(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	packet, err := SealForPeer(pub, []byte("secret"))
	require.NoError(t, err)

	_, err = OpenSealed(otherPriv, packet)
	assert.Error(t, err)
}
