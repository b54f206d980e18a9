// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrReadOnly = errors.New("storage: write in read-only transaction")
	ErrClosed   = errors.New("storage: closed")
)

// Record namespaces. The same names serve as key prefixes, bolt buckets and
// Postgres kinds.
const (
	bucketAd        = accounts.SeedAd
	bucketScreen    = accounts.SeedScreen
	bucketPublisher = accounts.SeedPublisher
	bucketWallet    = "wallet"
)

var buckets = []string{bucketAd, bucketScreen, bucketPublisher, bucketWallet}

// Tx is a view of the account records inside one transaction. Records
// returned are copies; changes become visible only through Put*.
type Tx interface {
	Ad(id ids.ID) (*accounts.AdAccount, error)
	PutAd(id ids.ID, ad *accounts.AdAccount) error
	Ads(fn func(id ids.ID, ad *accounts.AdAccount) error) error

	Screen(id ids.ID) (*accounts.ScreenAccount, error)
	PutScreen(id ids.ID, screen *accounts.ScreenAccount) error

	// Publisher is keyed by authority, not by derived address.
	Publisher(authority ids.ID) (*accounts.PublisherAccount, error)
	PutPublisher(p *accounts.PublisherAccount) error

	// Balance returns zero for a wallet that was never credited.
	Balance(wallet ids.ID) (uint64, error)
	PutBalance(wallet ids.ID, amount uint64) error
}

// Store provides serialized, all-or-nothing read-modify-write over the
// account records. If fn returns an error, or ctx is done before commit,
// none of fn's writes become visible.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	DSN     string `yaml:"dsn" json:"dsn"`
}

// Backends.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Open creates the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemStore(), nil
	case BackendBadger:
		return OpenBadger(cfg.Path)
	case BackendBolt:
		return OpenBolt(cfg.Path)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// rawTx is what a backend provides; recordTx layers the typed records on it.
type rawTx interface {
	get(bucket string, id ids.ID) ([]byte, error)
	put(bucket string, id ids.ID, value []byte) error
	each(bucket string, fn func(id ids.ID, value []byte) error) error
}

type recordTx struct {
	raw rawTx
}

func (t recordTx) Ad(id ids.ID) (*accounts.AdAccount, error) {
	ad := new(accounts.AdAccount)
	if err := t.load(bucketAd, id, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

func (t recordTx) PutAd(id ids.ID, ad *accounts.AdAccount) error {
	return t.store(bucketAd, id, ad)
}

func (t recordTx) Ads(fn func(ids.ID, *accounts.AdAccount) error) error {
	return t.raw.each(bucketAd, func(id ids.ID, value []byte) error {
		ad := new(accounts.AdAccount)
		if err := json.Unmarshal(value, ad); err != nil {
			return fmt.Errorf("storage: decode ad %s: %w", id, err)
		}
		return fn(id, ad)
	})
}

func (t recordTx) Screen(id ids.ID) (*accounts.ScreenAccount, error) {
	screen := new(accounts.ScreenAccount)
	if err := t.load(bucketScreen, id, screen); err != nil {
		return nil, err
	}
	return screen, nil
}

func (t recordTx) PutScreen(id ids.ID, screen *accounts.ScreenAccount) error {
	return t.store(bucketScreen, id, screen)
}

func (t recordTx) Publisher(authority ids.ID) (*accounts.PublisherAccount, error) {
	p := new(accounts.PublisherAccount)
	if err := t.load(bucketPublisher, accounts.PublisherAddress(authority), p); err != nil {
		return nil, err
	}
	return p, nil
}

func (t recordTx) PutPublisher(p *accounts.PublisherAccount) error {
	return t.store(bucketPublisher, accounts.PublisherAddress(p.Authority), p)
}

func (t recordTx) Balance(wallet ids.ID) (uint64, error) {
	b, err := t.raw.get(bucketWallet, wallet)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("storage: corrupt balance for %s", wallet)
	}
	return binary.BigEndian.Uint64(b), nil
}

func (t recordTx) PutBalance(wallet ids.ID, amount uint64) error {
	return t.raw.put(bucketWallet, wallet, binary.BigEndian.AppendUint64(nil, amount))
}

func (t recordTx) load(bucket string, id ids.ID, v any) error {
	b, err := t.raw.get(bucket, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("storage: decode %s %s: %w", bucket, id, err)
	}
	return nil
}

func (t recordTx) store(bucket string, id ids.ID, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s %s: %w", bucket, id, err)
	}
	return t.raw.put(bucket, id, b)
}

// key is the flat-keyspace form used by the luxfi/database backend.
func key(bucket string, id ids.ID) []byte {
	k := make([]byte, 0, len(bucket)+1+ids.IDLen)
	k = append(k, bucket...)
	k = append(k, '/')
	return append(k, id[:]...)
}

func prefix(bucket string) []byte {
	return append([]byte(bucket), '/')
}
