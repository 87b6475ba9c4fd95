package app

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/naivecoin-wallet/internal/ledger"
	klog "github.com/Klingon-tech/naivecoin-wallet/internal/log"
	"github.com/Klingon-tech/naivecoin-wallet/internal/txstore"
	"github.com/Klingon-tech/naivecoin-wallet/internal/wallet"
)

// CreateWallet creates and stores a wallet for password with its first
// address, and makes it the open wallet.
func (a *App) CreateWallet(password string) (*wallet.Wallet, error) {
	if err := wallet.ValidatePassword(password); err != nil {
		return nil, err
	}
	exists, err := a.wallets.Exists(password)
	if err != nil {
		return nil, fmt.Errorf("check wallet: %w", err)
	}
	if exists {
		return nil, ErrWalletExists
	}

	w, err := wallet.FromPassword(password)
	if err != nil {
		return nil, err
	}
	if _, err := w.GenerateAddress(); err != nil {
		return nil, err
	}
	if err := a.wallets.Save(w); err != nil {
		return nil, err
	}

	a.setWallet(w)
	a.logger.Info().Str("wallet_id", w.ID).Msg("Wallet created")
	return w, nil
}

// OpenWallet loads the wallet stored for password and makes it the open
// wallet.
func (a *App) OpenWallet(password string) (*wallet.Wallet, error) {
	w, err := a.wallets.LoadFromPassword(password)
	if err != nil {
		return nil, err
	}
	a.setWallet(w)
	a.logger.Debug().Str("wallet_id", w.ID).Int("addresses", len(w.KeyPairs)).Msg("Wallet opened")
	return w, nil
}

func (a *App) setWallet(w *wallet.Wallet) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w != nil && a.w != w {
		a.w.Lock()
	}
	a.w = w
}

// Wallet returns the open wallet.
func (a *App) Wallet() (*wallet.Wallet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return nil, ErrNoWallet
	}
	return a.w, nil
}

// NewAddress derives the next address of the open wallet and persists it.
func (a *App) NewAddress() (string, error) {
	var addr string
	err := a.withWallet(func(w *wallet.Wallet) error {
		var err error
		if addr, err = w.GenerateAddress(); err != nil {
			return err
		}
		if err := a.wallets.Save(w); err != nil {
			// Keep memory and disk in step.
			w.KeyPairs = w.KeyPairs[:len(w.KeyPairs)-1]
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return addr, nil
}

// withWallet runs fn on the open wallet under the wallet lock. fn must not
// do network I/O; use signer for that.
func (a *App) withWallet(fn func(w *wallet.Wallet) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return ErrNoWallet
	}
	return fn(a.w)
}

// signer returns a locked copy of the open wallet.
func (a *App) signer() (*wallet.Wallet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.w == nil {
		return nil, ErrNoWallet
	}
	return a.w.Clone(), nil
}

// Addresses lists the open wallet's addresses in derivation order.
func (a *App) Addresses() ([]string, error) {
	var out []string
	err := a.withWallet(func(w *wallet.Wallet) error {
		out = w.Addresses()
		return nil
	})
	return out, err
}

// Balance asks the ledger for the balance of address.
func (a *App) Balance(ctx context.Context, address string) (ledger.Balance, error) {
	return a.ledger.Balance(ctx, address)
}

// Send builds and signs a spend from the open wallet, submits it to the
// ledger and records it as pending. The configured fee applies.
func (a *App) Send(ctx context.Context, from, to string, amount uint64) (*txstore.Record, error) {
	w, err := a.signer()
	if err != nil {
		return nil, err
	}
	t, err := w.BuildAndSign(ctx, a.ledger, wallet.SendRequest{
		From:   from,
		To:     to,
		Amount: amount,
		Fee:    a.cfg.Wallet.Fee,
	})
	if err != nil {
		return nil, err
	}
	if err := t.Verify(); err != nil {
		return nil, fmt.Errorf("verify signed transaction: %w", err)
	}

	if _, err := a.ledger.SendTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("submit transaction %s: %w", t.ID, err)
	}

	rec, err := a.txs.Insert(t)
	if err != nil {
		l := klog.WithTx(a.logger, t.ID)
		l.Error().Err(err).Msg("Submitted transaction could not be recorded")
		return nil, err
	}
	return rec, nil
}

// History lists submitted transactions, oldest first.
func (a *App) History() ([]*txstore.Record, error) {
	return a.txs.List()
}

// Link runs the anonymous wallet link handshake against a shop link URL:
// the shop receives every address, returns one challenge per address, and
// the signed challenges are sent back.
func (a *App) Link(ctx context.Context, linkURL string) (*ledger.LinkResult, error) {
	w, err := a.signer()
	if err != nil {
		return nil, err
	}
	req, err := a.ledger.RequestLink(ctx, linkURL, w.Addresses())
	if err != nil {
		return nil, err
	}
	signed, err := w.SignVerificationData(req.VerificationData)
	if err != nil {
		return nil, err
	}

	res, err := a.ledger.SendVerification(ctx, req.WalletID, signed)
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("wallet_id", w.ID).
		Str("shop_wallet", res.WalletID).
		Int("addresses", len(signed)).
		Msg("Wallet linked")
	return res, nil
}
