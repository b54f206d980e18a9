// Package storagetest provides storage doubles for exercising failure
// paths in code built on storage.Store.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/storage"
)

// ErrInjected is returned by a FaultStore when a fault fires.
var ErrInjected = errors.New("storagetest: injected fault")

// Op names a single record access inside a transaction.
type Op string

const (
	OpGetAd        Op = "get_ad"
	OpPutAd        Op = "put_ad"
	OpListAds      Op = "list_ads"
	OpGetScreen    Op = "get_screen"
	OpPutScreen    Op = "put_screen"
	OpGetPublisher Op = "get_publisher"
	OpPutPublisher Op = "put_publisher"
	OpGetBalance   Op = "get_balance"
	OpPutBalance   Op = "put_balance"
)

// FaultStore wraps a Store and fails selected transactions. Faults are
// armed one shot at a time and disarm after they fire.
type FaultStore struct {
	storage.Store

	mu           sync.Mutex
	failOp       Op
	failErr      error
	beforeCommit func() error

	reads  uint64
	writes uint64
	faults uint64
}

// New wraps inner.
func New(inner storage.Store) *FaultStore {
	return &FaultStore{Store: inner}
}

// FailOn makes the next access of kind op return err.
func (s *FaultStore) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOp, s.failErr = op, err
}

// FailCommit makes the next Update whose callback succeeds return ErrInjected.
func (s *FaultStore) FailCommit() {
	s.BeforeCommit(func() error { return ErrInjected })
}

// BeforeCommit runs fn once, after the next successful Update callback and
// before the inner store commits. A non-nil result aborts the transaction.
func (s *FaultStore) BeforeCommit(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = fn
}

// Reads returns the number of record reads served.
func (s *FaultStore) Reads() uint64 { return atomic.LoadUint64(&s.reads) }

// Writes returns the number of record writes attempted.
func (s *FaultStore) Writes() uint64 { return atomic.LoadUint64(&s.writes) }

// Faults returns the number of injected failures.
func (s *FaultStore) Faults() uint64 { return atomic.LoadUint64(&s.faults) }

func (s *FaultStore) View(ctx context.Context, fn func(storage.Tx) error) error {
	return s.Store.View(ctx, func(tx storage.Tx) error {
		return fn(&faultTx{Tx: tx, s: s})
	})
}

func (s *FaultStore) Update(ctx context.Context, fn func(storage.Tx) error) error {
	return s.Store.Update(ctx, func(tx storage.Tx) error {
		if err := fn(&faultTx{Tx: tx, s: s}); err != nil {
			return err
		}
		s.mu.Lock()
		hook := s.beforeCommit
		s.beforeCommit = nil
		s.mu.Unlock()
		if hook == nil {
			return nil
		}
		err := hook()
		if err != nil {
			atomic.AddUint64(&s.faults, 1)
		}
		return err
	})
}

func (s *FaultStore) check(op Op, write bool) error {
	if write {
		atomic.AddUint64(&s.writes, 1)
	} else {
		atomic.AddUint64(&s.reads, 1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOp != op {
		return nil
	}
	err := s.failErr
	s.failOp, s.failErr = "", nil
	atomic.AddUint64(&s.faults, 1)
	return err
}

type faultTx struct {
	storage.Tx
	s *FaultStore
}

func (t *faultTx) Ad(id ids.ID) (*accounts.AdAccount, error) {
	if err := t.s.check(OpGetAd, false); err != nil {
		return nil, err
	}
	return t.Tx.Ad(id)
}

func (t *faultTx) PutAd(id ids.ID, ad *accounts.AdAccount) error {
	if err := t.s.check(OpPutAd, true); err != nil {
		return err
	}
	return t.Tx.PutAd(id, ad)
}

func (t *faultTx) Ads(fn func(ids.ID, *accounts.AdAccount) error) error {
	if err := t.s.check(OpListAds, false); err != nil {
		return err
	}
	return t.Tx.Ads(fn)
}

func (t *faultTx) Screen(id ids.ID) (*accounts.ScreenAccount, error) {
	if err := t.s.check(OpGetScreen, false); err != nil {
		return nil, err
	}
	return t.Tx.Screen(id)
}

func (t *faultTx) PutScreen(id ids.ID, screen *accounts.ScreenAccount) error {
	if err := t.s.check(OpPutScreen, true); err != nil {
		return err
	}
	return t.Tx.PutScreen(id, screen)
}

func (t *faultTx) Publisher(authority ids.ID) (*accounts.PublisherAccount, error) {
	if err := t.s.check(OpGetPublisher, false); err != nil {
		return nil, err
	}
	return t.Tx.Publisher(authority)
}

func (t *faultTx) PutPublisher(p *accounts.PublisherAccount) error {
	if err := t.s.check(OpPutPublisher, true); err != nil {
		return err
	}
	return t.Tx.PutPublisher(p)
}

func (t *faultTx) Balance(wallet ids.ID) (uint64, error) {
	if err := t.s.check(OpGetBalance, false); err != nil {
		return 0, err
	}
	return t.Tx.Balance(wallet)
}

func (t *faultTx) PutBalance(wallet ids.ID, amount uint64) error {
	if err := t.s.check(OpPutBalance, true); err != nil {
		return err
	}
	return t.Tx.PutBalance(wallet, amount)
}
