package commands

import (
	"crypto/ed25519"
	"encoding/hex"

	sagecrypto "github.com/quiet-mesh/quietcore/crypto"
	_ "github.com/quiet-mesh/quietcore/crypto/keys" // registers the Ed25519/Secp256k1 generators
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

func init() {
	Register("create_identity", createIdentity)
}

// createIdentity implements S1: mint a fresh Ed25519 keypair, derive
// peer_id from the public key, and emit the identity event that
// establishes it. The private key never leaves this envelope's
// LocalMetadata — project.go persists it to the signing-key store and
// nothing downstream puts it on the wire.
func createIdentity(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	kp, err := sagecrypto.NewEd25519KeyPair()
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "create_identity: generate keypair", err)
	}
	pub, ok := kp.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, errkind.New(errkind.Internal, "create_identity: unexpected public key type")
	}
	priv, ok := kp.PrivateKey().(ed25519.PrivateKey)
	if !ok {
		return nil, errkind.New(errkind.Internal, "create_identity: unexpected private key type")
	}
	peerID := hex.EncodeToString(pub)

	e := &envelope.Envelope{
		EventType:   events.TypeIdentity,
		PeerID:      peerID,
		SelfCreated: true,
		// Identity events are never signed (§4.3.6: the keypair being
		// established is the only one that could sign them), so the
		// signature stage is satisfied from birth.
		SigChecked: true,
		EventPlaintext: map[string]any{
			"public_key": hex.EncodeToString(pub),
			"key_type":   "ed25519",
			"name":       params.str("name"),
		},
		LocalMetadata: map[string]any{
			"private_key": []byte(priv),
			"public_key":  []byte(pub),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}
