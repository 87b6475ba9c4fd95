// Package txstore persists the transactions the wallet has submitted and
// tracks which of them are still waiting for a block.
package txstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Klingon-tech/naivecoin-wallet/internal/log"
	"github.com/Klingon-tech/naivecoin-wallet/internal/storage"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/tx"
)

// Store errors.
var (
	ErrNotFound = errors.New("transaction not found")
	ErrExists   = errors.New("transaction already recorded")
)

// Key prefixes inside the tx/ namespace.
var (
	namespace     = []byte("tx/")
	prefixRecord  = []byte("t/") // t/<id> -> Record JSON
	prefixPending = []byte("p/") // p/<id> -> empty (pending index)
)

// Record is a submitted transaction and its confirmation state.
type Record struct {
	ID          string     `json:"id"`
	Hash        string     `json:"hash"`
	Type        tx.Type    `json:"type"`
	Data        tx.Data    `json:"data"`
	Confirmed   bool       `json:"confirmed"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Transaction returns the ledger form of the record.
func (r *Record) Transaction() *tx.Transaction {
	t := &tx.Transaction{ID: r.ID, Hash: r.Hash, Type: r.Type, Data: r.Data, Confirmed: r.Confirmed}
	return t.Clone()
}

// Store keeps transaction records in a storage.DB.
type Store struct {
	db *storage.PrefixDB
}

// New creates a transaction store on db.
func New(db storage.DB) *Store {
	return &Store{db: storage.NewPrefixDB(db, namespace)}
}

func recordKey(id string) []byte {
	return append(append([]byte(nil), prefixRecord...), id...)
}

func pendingKey(id string) []byte {
	return append(append([]byte(nil), prefixPending...), id...)
}

// Insert records t as pending. A transaction id can only be recorded once.
func (s *Store) Insert(t *tx.Transaction) (*Record, error) {
	if t == nil || t.ID == "" {
		return nil, fmt.Errorf("txstore insert: %w", tx.ErrMalformed)
	}
	rec := &Record{
		ID:        t.ID,
		Hash:      t.Hash,
		Type:      t.Type,
		Data:      t.Clone().Data,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("txstore marshal: %w", err)
	}

	err = s.db.Update(func(txn storage.Txn) error {
		if _, err := txn.Get(recordKey(t.ID)); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, t.ID)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := txn.Put(recordKey(t.ID), data); err != nil {
			return err
		}
		return txn.Put(pendingKey(t.ID), []byte{})
	})
	if err != nil {
		return nil, fmt.Errorf("txstore insert: %w", err)
	}

	l := log.WithTx(log.Storage, t.ID)
	l.Debug().Msg("Transaction recorded as pending")
	return rec, nil
}

// Get returns the record for id.
func (s *Store) Get(id string) (*Record, error) {
	data, err := s.db.Get(recordKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("txstore get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("txstore unmarshal: %w", err)
	}
	return &rec, nil
}

// List returns every record, oldest first.
func (s *Store) List() ([]*Record, error) {
	var out []*Record
	err := s.db.ForEach(prefixRecord, func(_, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("txstore unmarshal: %w", err)
		}
		out = append(out, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Pending returns the ids of unconfirmed transactions.
func (s *Store) Pending() ([]string, error) {
	var ids []string
	err := s.db.ForEach(prefixPending, func(key, _ []byte) error {
		ids = append(ids, string(key[len(prefixPending):]))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("txstore pending: %w", err)
	}
	return ids, nil
}

// MarkConfirmed flips the record for id to confirmed and drops it from the
// pending index in one transaction. It reports whether this call made the
// transition; a record that is already confirmed returns false.
func (s *Store) MarkConfirmed(id string) (bool, error) {
	var changed bool
	err := s.db.Update(func(txn storage.Txn) error {
		data, err := txn.Get(recordKey(id))
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("txstore unmarshal: %w", err)
		}
		if rec.Confirmed {
			return nil
		}

		now := time.Now().UTC()
		rec.Confirmed = true
		rec.ConfirmedAt = &now
		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("txstore marshal: %w", err)
		}
		if err := txn.Put(recordKey(id), updated); err != nil {
			return err
		}
		if err := txn.Delete(pendingKey(id)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("txstore confirm: %w", err)
	}
	return changed, nil
}

// Delete forgets a transaction and its pending entry.
func (s *Store) Delete(id string) error {
	b := s.db.NewBatch()
	if err := b.Delete(recordKey(id)); err != nil {
		return err
	}
	if err := b.Delete(pendingKey(id)); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("txstore delete: %w", err)
	}
	return nil
}
