package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/naivecoin-wallet/internal/log"
	"github.com/Klingon-tech/naivecoin-wallet/internal/storage"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
)

const recordVersion = 1

// walletPrefix namespaces wallet records in the shared database.
var walletPrefix = []byte("wallet/")

// record is the persisted form of a wallet, keyed by password hash.
// Key material is sealed with the password; the password itself is never
// written.
type record struct {
	Version      int       `json:"version"`
	WalletID     string    `json:"wallet_id"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Sealed       []byte    `json:"sealed"`
}

type keyMaterial struct {
	Secret   string    `json:"secret"`
	KeyPairs []KeyPair `json:"key_pairs"`
}

// Store persists wallets in a key-value database.
type Store struct {
	db     storage.DB
	params EncryptionParams
}

// NewStore creates a wallet store on db. params control the cost of
// sealing key material.
func NewStore(db storage.DB, params EncryptionParams) *Store {
	return &Store{
		db:     storage.NewPrefixDB(db, walletPrefix),
		params: params,
	}
}

// Save inserts the wallet if no record exists for its password hash,
// otherwise replaces the stored key material. The read and write happen in
// one transaction. On update the stored wallet id wins and is copied back
// into w.
func (s *Store) Save(w *Wallet) error {
	if len(w.password) == 0 {
		return fmt.Errorf("save wallet %s: wallet is locked", w.ID)
	}
	km, err := json.Marshal(keyMaterial{Secret: w.Secret, KeyPairs: w.KeyPairs})
	if err != nil {
		return fmt.Errorf("encode key material: %w", err)
	}
	sealed, err := seal(km, w.password, []byte(w.PasswordHash), s.params)
	zero(km)
	if err != nil {
		return fmt.Errorf("seal key material: %w", err)
	}

	now := time.Now().UTC()
	var storedID string
	err = s.db.Update(func(txn storage.Txn) error {
		key := []byte(w.PasswordHash)
		rec := record{
			Version:      recordVersion,
			WalletID:     w.ID,
			PasswordHash: w.PasswordHash,
			CreatedAt:    now,
		}
		existing, err := txn.Get(key)
		switch {
		case err == nil:
			if err := json.Unmarshal(existing, &rec); err != nil {
				return fmt.Errorf("decode wallet record: %w", err)
			}
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		rec.Sealed = sealed
		rec.UpdatedAt = now
		storedID = rec.WalletID

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode wallet record: %w", err)
		}
		return txn.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}

	w.ID = storedID
	log.Storage.Debug().
		Str("wallet", w.ID).
		Int("keys", len(w.KeyPairs)).
		Msg("Wallet saved")
	return nil
}

// LoadFromPassword finds the wallet whose password hash matches password
// and unseals its key material.
func (s *Store) LoadFromPassword(password string) (*Wallet, error) {
	hash := crypto.HashString(password)
	data, err := s.db.Get([]byte(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode wallet record: %w", err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("unsupported wallet record version %d", rec.Version)
	}

	plain, err := open(rec.Sealed, []byte(password), []byte(rec.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("unseal wallet %s: %w", rec.WalletID, err)
	}
	defer zero(plain)

	var km keyMaterial
	if err := json.Unmarshal(plain, &km); err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return &Wallet{
		ID:           rec.WalletID,
		PasswordHash: rec.PasswordHash,
		Secret:       km.Secret,
		KeyPairs:     km.KeyPairs,
		password:     []byte(password),
	}, nil
}

// Exists reports whether a wallet is stored for password.
func (s *Store) Exists(password string) (bool, error) {
	return s.db.Has([]byte(crypto.HashString(password)))
}
