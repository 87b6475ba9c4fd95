package crypto

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"
)

// KDF parameters for the key chain.
const (
	KDFIterations = 10000
	SecretSize    = 64
)

// DefaultSalt is the fixed salt used by every naivecoin wallet. It is the
// ASCII text of the hex string, not its decoded bytes.
var DefaultSalt = []byte("0ffaa74d206930aaece253f090c88dbe6685b9e66ec49ad988d84fd7dff230d1")

// curveOrder is l = 2^252 + 27742317777372353535851937790883648493.
var curveOrder = func() *big.Int {
	l := new(big.Int).Lsh(big.NewInt(1), 252)
	c, _ := new(big.Int).SetString("27742317777372353535851937790883648493", 10)
	return l.Add(l, c)
}()

// DeriveSecret runs PBKDF2-HMAC-SHA512 over the hex-decoded input and
// returns SecretSize bytes of key material as hex.
func DeriveSecret(inputHex string, salt []byte) (string, error) {
	input, err := hex.DecodeString(inputHex)
	if err != nil {
		return "", fmt.Errorf("decode kdf input: %w", err)
	}
	if len(input) == 0 {
		return "", fmt.Errorf("kdf input is empty")
	}
	key := pbkdf2.Key(input, salt, KDFIterations, SecretSize, sha512.New)
	return hex.EncodeToString(key), nil
}

// ReduceScalar interprets b as a little-endian integer, reduces it modulo
// the Ed25519 group order and returns the result as 32 little-endian bytes.
// It panics on empty input.
func ReduceScalar(b []byte) [32]byte {
	if len(b) == 0 {
		panic("crypto: reduce of empty scalar")
	}
	n := new(big.Int).SetBytes(reversed(b))
	n.Mod(n, curveOrder)

	var out [32]byte
	be := n.Bytes()
	for i, v := range be {
		out[len(be)-1-i] = v
	}
	return out
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
