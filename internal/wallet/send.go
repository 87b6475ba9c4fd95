package wallet

import (
	"context"
	"fmt"
	"math"

	"github.com/Klingon-tech/naivecoin-wallet/internal/log"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/tx"
)

// DefaultFee is the fee attached to a spend when the caller has no policy.
const DefaultFee uint64 = 1

// UTXOSource lists the unspent outputs of an address.
type UTXOSource interface {
	Unspent(ctx context.Context, address string) ([]tx.UTXO, error)
}

// SendRequest describes a spend. ChangeAddress defaults to From.
type SendRequest struct {
	From          string
	To            string
	Amount        uint64
	Fee           uint64
	ChangeAddress string
}

// BuildAndSign spends every unspent output of req.From, paying req.Amount
// to req.To and the remainder minus req.Fee back to the change address.
// Change must be strictly positive. The transaction is confirmed but not
// submitted.
func (w *Wallet) BuildAndSign(ctx context.Context, src UTXOSource, req SendRequest) (*tx.Transaction, error) {
	priv, ok := w.SecretKeyByAddress(req.From)
	if !ok || priv == "" {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, req.From)
	}
	if req.To == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidRequest)
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	change := req.ChangeAddress
	if change == "" {
		change = req.From
	}

	utxos, err := src.Unspent(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("fetch unspent outputs: %w", err)
	}
	if len(utxos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFunds, req.From)
	}

	var total uint64
	for _, u := range utxos {
		if total > math.MaxUint64-u.Amount {
			return nil, fmt.Errorf("unspent total: %w", tx.ErrAmountOverflow)
		}
		total += u.Amount
	}
	if req.Amount > math.MaxUint64-req.Fee {
		return nil, fmt.Errorf("%w: amount plus fee overflows", ErrInvalidRequest)
	}
	spend := req.Amount + req.Fee
	if total <= spend {
		return nil, fmt.Errorf("%w: have %d, need more than %d", ErrInsufficientFunds, total, spend)
	}
	changeAmount := total - spend

	key, err := crypto.PrivateKeyFromHex(priv)
	if err != nil {
		return nil, fmt.Errorf("load key for %s: %w", req.From, err)
	}
	defer key.Zero()

	id, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("transaction id: %w", err)
	}
	b := tx.NewBuilder(id)
	for _, u := range utxos {
		b.AddInput(u)
	}
	b.AddOutput(req.Amount, req.To).AddOutput(changeAmount, change)
	if err := b.Sign(key); err != nil {
		return nil, err
	}
	t, err := b.Build()
	if err != nil {
		return nil, err
	}

	log.Wallet.Info().
		Str("tx_id", t.ID).
		Int("inputs", len(utxos)).
		Uint64("amount", req.Amount).
		Uint64("fee", req.Fee).
		Uint64("change", changeAmount).
		Msg("Transaction signed")
	return t, nil
}
