package tx

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
)

// Verification errors.
var (
	ErrHashMismatch     = errors.New("transaction hash mismatch")
	ErrInvalidSignature = errors.New("invalid input signature")
	ErrAmountInvalid    = errors.New("output amount not below input amount")
	ErrAmountOverflow   = errors.New("amount overflow")
	ErrMalformed        = errors.New("malformed transaction")
)

// Field widths in hex characters.
const (
	hashHexLen = 64
	addrHexLen = 64
	sigHexLen  = 128
)

// Verify checks the stored hash, every input signature and the amount rule,
// in that order. The transaction is never modified.
func (tx *Transaction) Verify() error {
	current, err := tx.CalcHash()
	if err != nil {
		return err
	}
	if current != tx.Hash {
		return fmt.Errorf("%w: got %s, expected %s", ErrHashMismatch, current, tx.Hash)
	}

	for _, in := range tx.Data.Inputs {
		h, err := in.SigningHash()
		if err != nil {
			return err
		}
		if !crypto.VerifySignature(in.Address, in.Signature, h) {
			return fmt.Errorf("%w: transaction %s", ErrInvalidSignature, in.Transaction)
		}
	}

	inputSum, err := tx.TotalInputValue()
	if err != nil {
		return fmt.Errorf("inputs: %w", err)
	}
	outputSum, err := tx.TotalOutputValue()
	if err != nil {
		return fmt.Errorf("outputs: %w", err)
	}
	if outputSum >= inputSum {
		return fmt.Errorf("%w: outputs %d, inputs %d", ErrAmountInvalid, outputSum, inputSum)
	}
	return nil
}

// Validate checks field types and widths. It does not check the hash,
// signatures or amounts; that is Verify's job.
func (tx *Transaction) Validate() error {
	if !isHex(tx.ID, hashHexLen) {
		return fmt.Errorf("%w: id %q", ErrMalformed, tx.ID)
	}
	if tx.Hash != "" && !isHex(tx.Hash, hashHexLen) {
		return fmt.Errorf("%w: hash %q", ErrMalformed, tx.Hash)
	}
	if !tx.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, tx.Type)
	}
	for i, in := range tx.Data.Inputs {
		if !isHex(in.Transaction, hashHexLen) {
			return fmt.Errorf("%w: input %d: transaction %q", ErrMalformed, i, in.Transaction)
		}
		if !isHex(in.Address, addrHexLen) {
			return fmt.Errorf("%w: input %d: address %q", ErrMalformed, i, in.Address)
		}
		if in.Signature != "" && !isHex(in.Signature, sigHexLen) {
			return fmt.Errorf("%w: input %d: signature", ErrMalformed, i)
		}
	}
	for i, out := range tx.Data.Outputs {
		if out.Amount == 0 {
			return fmt.Errorf("%w: output %d: amount must be positive", ErrMalformed, i)
		}
		if !isHex(out.Address, addrHexLen) {
			return fmt.Errorf("%w: output %d: address %q", ErrMalformed, i, out.Address)
		}
	}
	return nil
}

// Decode parses and validates a transaction received from outside the
// process. Malformed payloads are rejected with ErrMalformed.
func Decode(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return &tx, nil
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
