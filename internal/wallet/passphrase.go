package wallet

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MinPasswordWords is the minimum number of words a wallet password needs.
const MinPasswordWords = 5

// GeneratePassphrase returns a random BIP-39 word list usable as a wallet
// password. words must be 12, 15, 18, 21 or 24.
func GeneratePassphrase(words int) (string, error) {
	if words < 12 || words > 24 || words%3 != 0 {
		return "", fmt.Errorf("%w: passphrase length %d, want 12-24 in steps of 3", ErrInvalidRequest, words)
	}
	entropy, err := bip39.NewEntropy(words / 3 * 32)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate passphrase: %w", err)
	}
	return phrase, nil
}

// ValidatePassword rejects passwords with fewer than MinPasswordWords words.
func ValidatePassword(password string) error {
	if n := len(strings.Fields(password)); n < MinPasswordWords {
		return fmt.Errorf("%w: %d words, need at least %d", ErrWeakPassword, n, MinPasswordWords)
	}
	return nil
}

// IsGeneratedPassphrase reports whether password is a valid BIP-39 phrase.
func IsGeneratedPassphrase(password string) bool {
	return bip39.IsMnemonicValid(password)
}
