// Copyright (C) 2025 quiet-mesh project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package keys

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	sagecrypto "github.com/quiet-mesh/quietcore/crypto"
)

func init() {
	sagecrypto.SetKeyGenerators(GenerateEd25519KeyPair, GenerateSecp256k1KeyPair)
}

// NewEd25519KeyPair wraps an existing Ed25519 private key.
func NewEd25519KeyPair(privateKey ed25519.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	publicKey := privateKey.Public().(ed25519.PublicKey)
	if id == "" {
		hash := sha256.Sum256(publicKey)
		id = hex.EncodeToString(hash[:8])
	}
	return &ed25519KeyPair{privateKey: privateKey, publicKey: publicKey, id: id}, nil
}

// NewSecp256k1KeyPair wraps an existing Secp256k1 private key.
func NewSecp256k1KeyPair(privateKey *secp256k1.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	publicKey := privateKey.PubKey()
	if id == "" {
		hash := sha256.Sum256(publicKey.SerializeCompressed())
		id = hex.EncodeToString(hash[:8])
	}
	return &secp256k1KeyPair{privateKey: privateKey, publicKey: publicKey, id: id}, nil
}

// NewX25519KeyPair wraps an existing X25519 private key.
func NewX25519KeyPair(privateKey *ecdh.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	publicKey := privateKey.PublicKey()
	if id == "" {
		hash := sha256.Sum256(publicKey.Bytes())
		id = hex.EncodeToString(hash[:8])
	}
	return &X25519KeyPair{privateKey: privateKey, publicKey: publicKey, id: id}, nil
}

// publicKeyOnlyEd25519 wraps an Ed25519 public key with no private
// half, for verifying a peer's signatures once its identity key has
// been learned from an `identity` or `peer` event.
type publicKeyOnlyEd25519 struct {
	publicKey ed25519.PublicKey
	id        string
}

// NewEd25519VerifyOnlyKeyPair builds a verify-only KeyPair from a
// peer's public key, so the membership/signature handlers can hold
// every known peer's key in the same KeyPair-shaped map regardless of
// whether the local process owns the private half.
func NewEd25519VerifyOnlyKeyPair(publicKey ed25519.PublicKey, id string) sagecrypto.KeyPair {
	if id == "" {
		hash := sha256.Sum256(publicKey)
		id = hex.EncodeToString(hash[:8])
	}
	return &publicKeyOnlyEd25519{publicKey: publicKey, id: id}
}

func (pk *publicKeyOnlyEd25519) PublicKey() crypto.PublicKey   { return pk.publicKey }
func (pk *publicKeyOnlyEd25519) PrivateKey() crypto.PrivateKey { return nil }
func (pk *publicKeyOnlyEd25519) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeEd25519 }
func (pk *publicKeyOnlyEd25519) ID() string                    { return pk.id }

func (pk *publicKeyOnlyEd25519) Sign(message []byte) ([]byte, error) {
	return nil, errors.New("keys: cannot sign with a verify-only key pair")
}

func (pk *publicKeyOnlyEd25519) Verify(message, signature []byte) error {
	if !ed25519.Verify(pk.publicKey, message, signature) {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}
