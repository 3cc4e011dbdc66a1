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

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package crypto defines the cryptographic primitives the envelope
// pipeline depends on: identity key pairs, the transit/event AEAD
// layers, the peer-sealed box used by key events, content hashing, and
// the deterministic dummy mode used by tests. The actual key-type
// implementations live in subpackages:
//   - crypto/keys: Ed25519, Secp256k1 and X25519 key pairs
//   - crypto/storage: key storage backends
//   - crypto/rotation: identity and group key rotation
package crypto

import (
	"crypto"
	"errors"
)

// KeyType identifies the signing algorithm of a KeyPair.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "Ed25519"
	KeyTypeSecp256k1 KeyType = "Secp256k1"
	KeyTypeX25519    KeyType = "X25519"
)

// Mode selects between the real cryptographic backend and the
// deterministic dummy backend used by tests that need reproducible
// ciphertexts and signatures (§10.4).
type Mode string

const (
	ModeReal  Mode = "real"
	ModeDummy Mode = "dummy"
)

// KeyPair is a signing identity: a peer's long-term or ephemeral key.
type KeyPair interface {
	PublicKey() crypto.PublicKey
	PrivateKey() crypto.PrivateKey
	Type() KeyType
	Sign(message []byte) ([]byte, error)
	Verify(message, signature []byte) error
	ID() string
}

// KeyStorage persists key pairs under a local identifier.
type KeyStorage interface {
	Store(id string, keyPair KeyPair) error
	Load(id string) (KeyPair, error)
	Delete(id string) error
	List() ([]string, error)
	Exists(id string) bool
}

// Common errors returned by key pairs, storage, and the sealed-box and
// AEAD helpers.
var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrInvalidKeyType     = errors.New("invalid key type")
	ErrKeyExists          = errors.New("key already exists")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrSignNotSupported   = errors.New("key type does not support signing")
	ErrVerifyNotSupported = errors.New("key type does not support verification")
	ErrDecryptFailed      = errors.New("authenticated decryption failed")
)
