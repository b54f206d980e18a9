// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"

	"github.com/luxfi/samizdat/pkg/ids"
)

// KVStore keeps records in a luxfi database. Updates are serialized by a
// writer lock; their writes are staged in memory and flushed as one batch.
type KVStore struct {
	mu     sync.RWMutex
	db     database.Database
	closed bool
}

// NewKVStore wraps an open database.
func NewKVStore(db database.Database) *KVStore {
	return &KVStore{db: db}
}

// NewMemStore creates an in-memory store.
func NewMemStore() *KVStore {
	return NewKVStore(memdb.New())
}

// OpenBadger opens a badger-backed store at path.
func OpenBadger(path string) (*KVStore, error) {
	db, err := badgerdb.New(path, nil, "", nil)
	if err != nil {
		return nil, err
	}
	return NewKVStore(db), nil
}

func (s *KVStore) View(ctx context.Context, fn func(Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(recordTx{raw: &kvTx{db: s.db}})
}

func (s *KVStore) Update(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &kvTx{db: s.db, staged: make(map[string][]byte)}
	if err := fn(recordTx{raw: tx}); err != nil {
		return err
	}
	// aborted by the caller after fn succeeded: drop the staged writes
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

// Database returns the underlying database.
func (s *KVStore) Database() database.Database {
	return s.db
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// kvTx reads through its staged writes to the database. A nil staged map
// marks a read-only transaction.
type kvTx struct {
	db     database.Database
	staged map[string][]byte
}

func (t *kvTx) get(bucket string, id ids.ID) ([]byte, error) {
	k := key(bucket, id)
	if v, ok := t.staged[string(k)]; ok {
		return v, nil
	}
	v, err := t.db.Get(k)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *kvTx) put(bucket string, id ids.ID, value []byte) error {
	if t.staged == nil {
		return ErrReadOnly
	}
	t.staged[string(key(bucket, id))] = value
	return nil
}

func (t *kvTx) each(bucket string, fn func(ids.ID, []byte) error) error {
	p := prefix(bucket)
	seen := make(map[ids.ID]struct{})

	it := t.db.NewIteratorWithPrefix(p)
	defer it.Release()
	for it.Next() {
		id, err := ids.FromBytes(it.Key()[len(p):])
		if err != nil {
			continue
		}
		seen[id] = struct{}{}
		value := it.Value()
		if v, ok := t.staged[string(key(bucket, id))]; ok {
			value = v
		}
		if err := fn(id, append([]byte(nil), value...)); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return err
	}

	for k, v := range t.staged {
		if len(k) != len(p)+ids.IDLen || k[:len(p)] != string(p) {
			continue
		}
		id, _ := ids.FromBytes([]byte(k[len(p):]))
		if _, ok := seen[id]; ok {
			continue
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *kvTx) commit() error {
	if len(t.staged) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.staged))
	for k := range t.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batch := t.db.NewBatch()
	for _, k := range keys {
		if err := batch.Put([]byte(k), t.staged[k]); err != nil {
			return err
		}
	}
	return batch.Write()
}
