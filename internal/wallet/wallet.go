// Package wallet implements the password-derived naivecoin key chain,
// its persistence and transaction signing.
package wallet

import (
	"fmt"

	"github.com/Klingon-tech/naivecoin-wallet/internal/log"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
)

// Wallet is an ordered chain of key pairs rooted at a password.
//
// Secret stays empty until the first address is generated. The plaintext
// password is kept in memory only, to seal key material on save.
type Wallet struct {
	ID           string
	PasswordHash string
	Secret       string
	KeyPairs     []KeyPair

	password []byte
}

// FromPassword creates a new, empty wallet for password.
func FromPassword(password string) (*Wallet, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrInvalidRequest)
	}
	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("wallet id: %w", err)
	}
	return &Wallet{
		ID:           id,
		PasswordHash: crypto.HashString(password),
		password:     []byte(password),
	}, nil
}

// GenerateAddress appends the next key pair of the chain and returns its
// public key. The first call also derives the wallet secret.
func (w *Wallet) GenerateAddress() (string, error) {
	if w.Secret == "" {
		secret, err := crypto.DeriveSecret(w.PasswordHash, crypto.DefaultSalt)
		if err != nil {
			return "", fmt.Errorf("derive wallet secret: %w", err)
		}
		w.Secret = secret
	}

	var (
		kp  KeyPair
		err error
	)
	if len(w.KeyPairs) == 0 {
		kp, err = FirstKeyPair(w.Secret)
	} else {
		kp, err = NextKeyPair(w.KeyPairs[len(w.KeyPairs)-1])
	}
	if err != nil {
		return "", err
	}
	kp.Index = len(w.KeyPairs) + 1
	w.KeyPairs = append(w.KeyPairs, kp)

	log.Wallet.Debug().
		Str("wallet", w.ID).
		Int("index", kp.Index).
		Str("address", kp.PublicKey).
		Msg("Address generated")
	return kp.PublicKey, nil
}

// Addresses returns the public keys in derivation order.
func (w *Wallet) Addresses() []string {
	out := make([]string, len(w.KeyPairs))
	for i, kp := range w.KeyPairs {
		out[i] = kp.PublicKey
	}
	return out
}

// SecretKeyByAddress returns the hex private key that owns address.
func (w *Wallet) SecretKeyByAddress(address string) (string, bool) {
	for _, kp := range w.KeyPairs {
		if kp.PublicKey == address {
			return kp.PrivateKey, true
		}
	}
	return "", false
}

// HasAddress reports whether address belongs to the wallet.
func (w *Wallet) HasAddress(address string) bool {
	_, ok := w.SecretKeyByAddress(address)
	return ok
}

// VerificationEntry is one challenge of the wallet link handshake.
type VerificationEntry struct {
	Address   string `json:"address"`
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// SignVerificationData signs hash(data) for every entry with the key owning
// its address. If any address is not ours the whole batch fails and nothing
// is returned. The input slice is not modified.
func (w *Wallet) SignVerificationData(entries []VerificationEntry) ([]VerificationEntry, error) {
	out := make([]VerificationEntry, len(entries))
	for i, e := range entries {
		priv, ok := w.SecretKeyByAddress(e.Address)
		if !ok {
			log.Wallet.Error().Str("address", e.Address).Msg("Private key for link address not found")
			return nil, fmt.Errorf("%w: %w: %s", ErrLink, ErrKeyNotFound, e.Address)
		}
		key, err := crypto.PrivateKeyFromHex(priv)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLink, err)
		}
		sig, err := key.Sign(crypto.HashString(e.Data))
		key.Zero()
		if err != nil {
			return nil, fmt.Errorf("%w: sign %s: %v", ErrLink, e.Address, err)
		}
		out[i] = VerificationEntry{Address: e.Address, Data: e.Data, Signature: sig}
	}
	return out, nil
}

// Clone returns a locked copy of w. The copy can sign but not be saved.
func (w *Wallet) Clone() *Wallet {
	return &Wallet{
		ID:           w.ID,
		PasswordHash: w.PasswordHash,
		Secret:       w.Secret,
		KeyPairs:     append([]KeyPair(nil), w.KeyPairs...),
	}
}

// Lock wipes the in-memory password. A locked wallet can still sign but
// can no longer be saved.
func (w *Wallet) Lock() {
	zero(w.password)
	w.password = nil
}
