package tx

import (
	"fmt"

	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a builder for a regular transaction with the given id.
func NewBuilder(id string) *Builder {
	return &Builder{
		tx: &Transaction{ID: id, Type: TypeRegular},
	}
}

// SetType sets the transaction type.
func (b *Builder) SetType(t Type) *Builder {
	b.tx.Type = t
	return b
}

// AddInput adds an unsigned input spending utxo.
func (b *Builder) AddInput(utxo UTXO) *Builder {
	b.tx.Data.Inputs = append(b.tx.Data.Inputs, utxo.Input())
	return b
}

// AddOutput adds an output paying amount to address.
func (b *Builder) AddOutput(amount uint64, address string) *Builder {
	b.tx.Data.Outputs = append(b.tx.Data.Outputs, Output{Amount: amount, Address: address})
	return b
}

// Sign signs every input independently over its own signing hash.
func (b *Builder) Sign(signer crypto.Signer) error {
	for i := range b.tx.Data.Inputs {
		in := &b.tx.Data.Inputs[i]
		h, err := in.SigningHash()
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		sig, err := signer.Sign(h)
		if err != nil {
			return fmt.Errorf("sign input %d: %w", i, err)
		}
		in.Signature = sig
	}
	return nil
}

// Build confirms the transaction and returns it.
// Does NOT verify; call tx.Verify() separately.
func (b *Builder) Build() (*Transaction, error) {
	if len(b.tx.Data.Outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs", ErrMalformed)
	}
	if err := b.tx.Confirm(); err != nil {
		return nil, err
	}
	return b.tx, nil
}
