// Package checkpoint provides the durable key-value store backing both the
// wallet counter and swap Lifecycle checkpoints. It is a thin wrapper over
// walletdb, the same bbolt-backed storage interface the teacher's stack uses
// for on-disk wallet state, giving swapd an ACID-transacted store without
// hand-rolling one.
package checkpoint

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"

	// Register the bdb (bbolt) backend driver with walletdb.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const dbTimeout = 10 * time.Second

// Store is a namespaced durable key-value store. Each logical namespace
// (e.g. "wallet", "swap") gets its own top-level bucket so unrelated
// services never collide on key space even though they share one file.
type Store struct {
	db walletdb.DB
}

// Open opens (creating if absent) the checkpoint database at path.
func Open(path string) (*Store, error) {
	db, err := walletdb.Create("bdb", path, true, dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// ensureBucket returns namespace's top-level bucket, creating it if this is
// the first checkpoint written under that namespace.
func ensureBucket(tx walletdb.ReadWriteTx, namespace string) (walletdb.ReadWriteBucket, error) {
	key := []byte(namespace)
	bucket := tx.ReadWriteBucket(key)
	if bucket != nil {
		return bucket, nil
	}
	return tx.CreateTopLevelBucket(key)
}

// Put durably writes value under key in namespace. The write is fsync'd
// before Put returns, satisfying the "checkpoint before acknowledge"
// invariant every caller relies on.
func (s *Store) Put(namespace string, key, value []byte) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket, err := ensureBucket(tx, namespace)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

// Get reads the value stored under key in namespace. It returns (nil, nil)
// if no such key exists; callers distinguish "never checkpointed" from
// "checkpointed as empty" themselves if that distinction matters to them.
func (s *Store) Get(namespace string, key []byte) ([]byte, error) {
	var value []byte
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

// Delete removes key from namespace. Deleting an absent key is a no-op.
func (s *Store) Delete(namespace string, key []byte) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		return bucket.Delete(key)
	})
}

// ForEach calls fn once per key/value pair currently stored in namespace, in
// the bucket's native iteration order. It is used at startup to reload
// every in-flight swap's last checkpoint. fn must not write to the store.
func (s *Store) ForEach(namespace string, fn func(key, value []byte) error) error {
	return walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(fn)
	})
}
