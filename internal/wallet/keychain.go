package wallet

import (
	"fmt"

	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
)

// KeyPair is one link of the wallet key chain. Index is its 1-based
// position; PublicKey doubles as the address.
type KeyPair struct {
	Index      int    `json:"index"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// keyPairFromSecret derives a key pair from hex key material.
func keyPairFromSecret(secretHex string, index int) (KeyPair, error) {
	key, err := crypto.DeriveKeyPair(secretHex)
	if err != nil {
		return KeyPair{}, err
	}
	defer key.Zero()
	return KeyPair{
		Index:      index,
		PublicKey:  key.PublicKeyHex(),
		PrivateKey: key.Hex(),
	}, nil
}

// FirstKeyPair derives the first key of a chain from the wallet secret.
func FirstKeyPair(secretHex string) (KeyPair, error) {
	kp, err := keyPairFromSecret(secretHex, 1)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive first key: %w", err)
	}
	return kp, nil
}

// NextKeyPair derives the key that follows prev. The previous private key
// is run through the KDF and the result becomes the next signing key, so the
// chain only moves forward.
func NextKeyPair(prev KeyPair) (KeyPair, error) {
	seed, err := crypto.DeriveSecret(prev.PrivateKey, crypto.DefaultSalt)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive key %d: %w", prev.Index+1, err)
	}
	kp, err := keyPairFromSecret(seed, prev.Index+1)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive key %d: %w", prev.Index+1, err)
	}
	return kp, nil
}
