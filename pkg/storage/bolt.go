// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/luxfi/samizdat/pkg/ids"
)

// BoltStore keeps records in a bbolt file, one bucket per record kind.
// bbolt allows a single writer, which serializes Update.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the bbolt database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(recordTx{raw: boltTx{tx: tx}})
	})
}

func (s *BoltStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// returning an error from the closure rolls the bolt transaction back
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := fn(recordTx{raw: boltTx{tx: tx}}); err != nil {
			return err
		}
		return ctx.Err()
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }

type boltTx struct {
	tx *bbolt.Tx
}

func (t boltTx) bucket(name string) (*bbolt.Bucket, error) {
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("storage: missing bucket %q", name)
	}
	return b, nil
}

func (t boltTx) get(bucket string, id ids.ID) ([]byte, error) {
	b, err := t.bucket(bucket)
	if err != nil {
		return nil, err
	}
	v := b.Get(id[:])
	if v == nil {
		return nil, ErrNotFound
	}
	// bolt memory is only valid for the life of the transaction
	return append([]byte(nil), v...), nil
}

func (t boltTx) put(bucket string, id ids.ID, value []byte) error {
	if !t.tx.Writable() {
		return ErrReadOnly
	}
	b, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	return b.Put(id[:], value)
}

func (t boltTx) each(bucket string, fn func(ids.ID, []byte) error) error {
	b, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		id, err := ids.FromBytes(k)
		if err != nil {
			return nil
		}
		return fn(id, append([]byte(nil), v...))
	})
}
