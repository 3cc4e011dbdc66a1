package crypto

// This file holds the constructor indirection that lets crypto/keys and
// crypto/storage register their constructors here without crypto
// importing them directly, avoiding an import cycle (keys and storage
// both import crypto for the KeyPair/KeyStorage interfaces).

var (
	generateEd25519KeyPair   func() (KeyPair, error)
	generateSecp256k1KeyPair func() (KeyPair, error)
	newMemoryKeyStorage      func() KeyStorage
)

// SetKeyGenerators registers the key generation functions. Called from
// crypto/keys's init.
func SetKeyGenerators(ed25519Gen, secp256k1Gen func() (KeyPair, error)) {
	generateEd25519KeyPair = ed25519Gen
	generateSecp256k1KeyPair = secp256k1Gen
}

// SetStorageConstructors registers the storage constructor functions.
// Called from crypto/storage's init.
func SetStorageConstructors(memoryStorage func() KeyStorage) {
	newMemoryKeyStorage = memoryStorage
}

// NewEd25519KeyPair generates a new Ed25519 key pair.
func NewEd25519KeyPair() (KeyPair, error) {
	if generateEd25519KeyPair == nil {
		panic("crypto: Ed25519 key generator not registered (import crypto/keys for its side effect)")
	}
	return generateEd25519KeyPair()
}

// NewSecp256k1KeyPair generates a new Secp256k1 key pair.
func NewSecp256k1KeyPair() (KeyPair, error) {
	if generateSecp256k1KeyPair == nil {
		panic("crypto: Secp256k1 key generator not registered (import crypto/keys for its side effect)")
	}
	return generateSecp256k1KeyPair()
}

// NewMemoryKeyStorage creates a new in-memory key storage.
func NewMemoryKeyStorage() KeyStorage {
	if newMemoryKeyStorage == nil {
		panic("crypto: memory key storage not registered (import crypto/storage for its side effect)")
	}
	return newMemoryKeyStorage()
}
