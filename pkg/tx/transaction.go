// Package tx defines naivecoin transaction types, hashing and verification.
package tx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
)

// Type is the transaction kind understood by the ledger node.
type Type string

// Transaction types.
const (
	TypeRegular Type = "regular"
	TypeFee     Type = "fee"
	TypeReward  Type = "reward"
)

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeRegular, TypeFee, TypeReward:
		return true
	}
	return false
}

// Transaction is a naivecoin transaction.
//
// Hash must equal CalcHash() of the current id, type and data. Confirmed is
// local bookkeeping and is never sent to the ledger.
type Transaction struct {
	ID        string `json:"id"`
	Hash      string `json:"hash"`
	Type      Type   `json:"type"`
	Data      Data   `json:"data"`
	Confirmed bool   `json:"-"`
}

// Data holds the inputs and outputs of a transaction.
// Field order is part of the canonical hash.
type Data struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// Input spends a previous output. Field order is part of the canonical hash.
type Input struct {
	Transaction string `json:"transaction"`
	Index       uint32 `json:"index"`
	Amount      uint64 `json:"amount"`
	Address     string `json:"address"`
	Signature   string `json:"signature"`
}

// Output assigns an amount to an address.
type Output struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

// UTXO is an unspent output as reported by the ledger node.
type UTXO struct {
	Transaction string `json:"transaction"`
	Index       uint32 `json:"index"`
	Amount      uint64 `json:"amount"`
	Address     string `json:"address"`
	Signature   string `json:"signature,omitempty"`
}

// Input converts the UTXO into an unsigned input.
func (u UTXO) Input() Input {
	return Input{
		Transaction: u.Transaction,
		Index:       u.Index,
		Amount:      u.Amount,
		Address:     u.Address,
	}
}

// refJSON is the wire form of Input and UTXO. Older clients send the output
// index as a decimal string, so it is decoded separately.
type refJSON struct {
	Transaction string          `json:"transaction"`
	Index       json.RawMessage `json:"index"`
	Amount      uint64          `json:"amount"`
	Address     string          `json:"address"`
	Signature   string          `json:"signature"`
}

// UnmarshalJSON decodes an input, accepting a numeric or decimal-string index.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j refJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	idx, err := parseIndex(j.Index)
	if err != nil {
		return err
	}
	*in = Input{
		Transaction: j.Transaction,
		Index:       idx,
		Amount:      j.Amount,
		Address:     j.Address,
		Signature:   j.Signature,
	}
	return nil
}

// UnmarshalJSON decodes a UTXO, accepting a numeric or decimal-string index.
func (u *UTXO) UnmarshalJSON(data []byte) error {
	var j refJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	idx, err := parseIndex(j.Index)
	if err != nil {
		return err
	}
	*u = UTXO{
		Transaction: j.Transaction,
		Index:       idx,
		Amount:      j.Amount,
		Address:     j.Address,
		Signature:   j.Signature,
	}
	return nil
}

func parseIndex(raw json.RawMessage) (uint32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing index", ErrMalformed)
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: index: %v", ErrMalformed, err)
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: index %s is not a non-negative integer", ErrMalformed, raw)
	}
	return uint32(n), nil
}

// canonicalJSON encodes v compactly without HTML escaping.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CanonicalData returns the canonical serialization of the transaction data.
// Missing input or output lists are encoded as empty arrays.
func (tx *Transaction) CanonicalData() ([]byte, error) {
	d := Data{Inputs: tx.Data.Inputs, Outputs: tx.Data.Outputs}
	if d.Inputs == nil {
		d.Inputs = []Input{}
	}
	if d.Outputs == nil {
		d.Outputs = []Output{}
	}
	return canonicalJSON(d)
}

// CalcHash computes hash(id || type || canonical(data)).
func (tx *Transaction) CalcHash() (string, error) {
	data, err := tx.CanonicalData()
	if err != nil {
		return "", fmt.Errorf("encode tx data: %w", err)
	}
	return crypto.HashString(tx.ID + string(tx.Type) + string(data)), nil
}

// Confirm finalizes the transaction by storing its canonical hash.
func (tx *Transaction) Confirm() error {
	h, err := tx.CalcHash()
	if err != nil {
		return err
	}
	tx.Hash = h
	return nil
}

// InputSigningHash returns the digest each input signature commits to:
// hash({"transaction","index","address"}).
func InputSigningHash(txID string, index uint32, address string) (string, error) {
	payload := struct {
		Transaction string `json:"transaction"`
		Index       uint32 `json:"index"`
		Address     string `json:"address"`
	}{txID, index, address}
	b, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("encode signing payload: %w", err)
	}
	return crypto.Hash(b), nil
}

// SigningHash returns the digest the input's signature commits to.
func (in Input) SigningHash() (string, error) {
	return InputSigningHash(in.Transaction, in.Index, in.Address)
}

// TotalInputValue returns the sum of all input amounts.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalInputValue() (uint64, error) {
	var total uint64
	for _, in := range tx.Data.Inputs {
		if total > math.MaxUint64-in.Amount {
			return 0, ErrAmountOverflow
		}
		total += in.Amount
	}
	return total, nil
}

// TotalOutputValue returns the sum of all output amounts.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Data.Outputs {
		if total > math.MaxUint64-out.Amount {
			return 0, ErrAmountOverflow
		}
		total += out.Amount
	}
	return total, nil
}

// Clone returns a deep copy of the transaction.
func (tx *Transaction) Clone() *Transaction {
	c := *tx
	if tx.Data.Inputs != nil {
		c.Data.Inputs = append([]Input(nil), tx.Data.Inputs...)
	}
	if tx.Data.Outputs != nil {
		c.Data.Outputs = append([]Output(nil), tx.Data.Outputs...)
	}
	return &c
}
