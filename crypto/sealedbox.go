package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/cloudflare/circl/hpke"
)

// sealedBoxInfo binds the HPKE context to its purpose so a key event
// sealed box can never be replayed as some other HPKE exchange.
var sealedBoxInfo = []byte("quietcore-key-event-sealed-box-v1")

var hpkeSuite = hpke.NewSuite(
	hpke.KEM_X25519_HKDF_SHA256,
	hpke.KDF_HKDF_SHA256,
	hpke.AEAD_ChaCha20Poly1305,
)

// SealForPeer encrypts plaintext (a symmetric key or key-rotation
// payload carried inside a `key` event, §11.7) to recipientEdPub's
// Ed25519 identity key. It converts the Ed25519 public key to its
// birationally equivalent X25519 point and runs an HPKE base-mode seal,
// so the recipient needs only the long-term signing key it already
// has — no separate X25519 key registration step.
func SealForPeer(recipientEdPub ed25519.PublicKey, plaintext []byte) (packet []byte, err error) {
	xPub, err := edPublicToX25519(recipientEdPub)
	if err != nil {
		return nil, err
	}

	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	rp, err := kem.UnmarshalBinaryPublicKey(xPub)
	if err != nil {
		return nil, fmt.Errorf("crypto: unmarshal recipient x25519 key: %w", err)
	}

	sender, err := hpkeSuite.NewSender(rp, sealedBoxInfo)
	if err != nil {
		return nil, fmt.Errorf("crypto: hpke sender setup: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: hpke sender setup: %w", err)
	}
	ct, err := sealer.Seal(plaintext, sealedBoxInfo)
	if err != nil {
		return nil, fmt.Errorf("crypto: hpke seal: %w", err)
	}
	return append(append([]byte{}, enc...), ct...), nil
}

// OpenSealed reverses SealForPeer using the recipient's own Ed25519
// private key.
func OpenSealed(recipientEdPriv ed25519.PrivateKey, packet []byte) (plaintext []byte, err error) {
	xPriv, err := edPrivateToX25519(recipientEdPriv)
	if err != nil {
		return nil, err
	}

	const encLen = 32 // X25519 KEM encapsulated-key length
	if len(packet) < encLen {
		return nil, fmt.Errorf("%w: sealed box shorter than KEM encapsulation", ErrDecryptFailed)
	}
	enc, ct := packet[:encLen], packet[encLen:]

	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	skR, err := kem.UnmarshalBinaryPrivateKey(xPriv)
	if err != nil {
		return nil, fmt.Errorf("crypto: unmarshal recipient x25519 priv: %w", err)
	}
	receiver, err := hpkeSuite.NewReceiver(skR, sealedBoxInfo)
	if err != nil {
		return nil, fmt.Errorf("crypto: hpke receiver setup: %w", err)
	}
	opener, err := receiver.Setup(enc)
	if err != nil {
		return nil, fmt.Errorf("crypto: hpke receiver setup: %w", err)
	}
	pt, err := opener.Open(ct, sealedBoxInfo)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}

// edPublicToX25519 converts an Ed25519 public key to its Montgomery
// (X25519) form by decompressing the Edwards point.
func edPublicToX25519(pub ed25519.PublicKey) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("crypto: bad ed25519 public key length: %d", len(pub))
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid ed25519 public key: %w", err)
	}
	return p.BytesMontgomery(), nil
}

// edPrivateToX25519 converts an Ed25519 private key to the X25519
// scalar per RFC 8032 §5.1.5.
func edPrivateToX25519(priv ed25519.PrivateKey) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: bad ed25519 private key length: %d", len(priv))
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	out := make([]byte, 32)
	copy(out, h[:32])
	return out, nil
}
