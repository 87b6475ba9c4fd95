package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Signer signs message digests with an Ed25519 private key.
type Signer interface {
	// Sign produces a signature over a hex-encoded 32-byte digest.
	Sign(hashHex string) (string, error)
	// PublicKeyHex returns the 32-byte public key as hex.
	PublicKeyHex() string
}

// Verifier verifies Ed25519 signatures.
type Verifier interface {
	Verify(pubKeyHex, sigHex, hashHex string) bool
}

// PrivateKey wraps an Ed25519 key derived from a 32-byte seed.
type PrivateKey struct {
	seed [32]byte
	key  ed25519.PrivateKey
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte seed.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(b))
	}
	pk := &PrivateKey{key: ed25519.NewKeyFromSeed(b)}
	copy(pk.seed[:], b)
	return pk, nil
}

// PrivateKeyFromHex parses a hex-encoded 32-byte seed.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return PrivateKeyFromBytes(b)
}

// DeriveKeyPair turns hex key material into a signing key. The material is
// reduced modulo the group order and the result is used as the Ed25519 seed.
func DeriveKeyPair(secretHex string) (*PrivateKey, error) {
	b, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("secret is empty")
	}
	seed := ReduceScalar(b)
	return PrivateKeyFromBytes(seed[:])
}

// Sign produces an Ed25519 signature over the decoded digest.
func (pk *PrivateKey) Sign(hashHex string) (string, error) {
	msg, err := hex.DecodeString(hashHex)
	if err != nil {
		return "", fmt.Errorf("decode hash: %w", err)
	}
	if len(msg) != 32 {
		return "", fmt.Errorf("hash must be 32 bytes, got %d", len(msg))
	}
	return hex.EncodeToString(ed25519.Sign(pk.key, msg)), nil
}

// PublicKey returns the 32-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return []byte(pk.key.Public().(ed25519.PublicKey))
}

// PublicKeyHex returns the public key as hex. This is the wallet address.
func (pk *PrivateKey) PublicKeyHex() string {
	return hex.EncodeToString(pk.PublicKey())
}

// Serialize returns the 32-byte seed.
func (pk *PrivateKey) Serialize() []byte {
	out := make([]byte, len(pk.seed))
	copy(out, pk.seed[:])
	return out
}

// Hex returns the seed as hex.
func (pk *PrivateKey) Hex() string {
	return hex.EncodeToString(pk.seed[:])
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	for i := range pk.seed {
		pk.seed[i] = 0
	}
	for i := range pk.key {
		pk.key[i] = 0
	}
}

// VerifySignature checks an Ed25519 signature over a hex digest.
// Returns false on any decoding error.
func VerifySignature(pubKeyHex, sigHex, hashHex string) bool {
	pub, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// Ed25519Verifier implements the Verifier interface.
type Ed25519Verifier struct{}

// Verify checks an Ed25519 signature over a hex digest.
func (v Ed25519Verifier) Verify(pubKeyHex, sigHex, hashHex string) bool {
	return VerifySignature(pubKeyHex, sigHex, hashHex)
}
