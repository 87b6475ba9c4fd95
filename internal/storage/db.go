// Package storage provides database abstractions.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	// Update runs fn inside a single read-write transaction. Writes made
	// through txn are applied atomically only if fn returns nil.
	Update(fn func(txn Txn) error) error
	Close() error
}

// Txn is a read-write view used inside DB.Update.
type Txn interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Batch buffers writes and commits them atomically.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that support atomic batches.
type Batcher interface {
	NewBatch() Batch
}

type batchOp struct {
	key   []byte
	value []byte // nil means delete
}

// txnBatch buffers writes and applies them in a single Update.
type txnBatch struct {
	db  DB
	ops []batchOp
}

func newTxnBatch(db DB) *txnBatch {
	return &txnBatch{db: db}
}

func (b *txnBatch) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: v})
	return nil
}

func (b *txnBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...)})
	return nil
}

func (b *txnBatch) Commit() error {
	return b.db.Update(func(txn Txn) error {
		for _, op := range b.ops {
			if op.value == nil {
				if err := txn.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Put(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
}
