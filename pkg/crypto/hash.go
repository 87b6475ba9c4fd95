// Package crypto provides cryptographic primitives for the naivecoin wallet.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
)

// IDSize is the number of random bytes in a transaction or wallet id.
const IDSize = 32

// Hash computes the SHA-256 hash of data and returns it as lowercase hex.
// The ledger node identifies transactions by this digest, so the algorithm
// cannot change without breaking interop.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString hashes the UTF-8 bytes of s.
func HashString(s string) string {
	return Hash([]byte(s))
}

// RandomID returns n random bytes from the system CSPRNG, hex encoded.
func RandomID(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random id size must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewID returns a fresh IDSize-byte random id.
func NewID() (string, error) {
	return RandomID(IDSize)
}
