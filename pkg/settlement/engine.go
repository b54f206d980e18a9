// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/crypto/hashing"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/metric"
	"github.com/luxfi/samizdat/pkg/storage"
)

// Receipt records a settled proof.
type Receipt struct {
	ID        ids.ID    `json:"id"`
	Ad        ids.ID    `json:"ad"`
	Screen    ids.ID    `json:"screen"`
	Payee     ids.ID    `json:"payee"`
	Nonce     uint64    `json:"nonce"`
	Timestamp int64     `json:"timestamp"`
	Amount    uint64    `json:"amount"`
	PlayCount uint64    `json:"playCount"`
	SettledAt time.Time `json:"settledAt"`
}

// Engine applies proofs and management operations to the account store.
// It holds no locks of its own; every operation runs inside one
// store.Update.
type Engine struct {
	store   storage.Store
	log     log.Logger
	metrics *metric.Metrics
	emitter Emitter
	nowFn   func() time.Time
}

// NewEngine creates an engine over store.
func NewEngine(store storage.Store, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NoOp()
	}
	return &Engine{
		store:   store,
		log:     logger,
		emitter: NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetMetrics enables metrics. Nil disables them.
func (e *Engine) SetMetrics(m *metric.Metrics) { e.metrics = m }

// SetEmitter configures where events go.
func (e *Engine) SetEmitter(emitter Emitter) {
	if emitter == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for receipts and events.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

// SubmitProof verifies a display claim and, if it passes every check,
// pays the bounty to the screen owner. On error no record changes.
// Nothing is retried; a resubmission needs a greater nonce.
func (e *Engine) SubmitProof(ctx context.Context, req *SubmitProofRequest) (*Receipt, error) {
	start := time.Now()

	var out *Outcome
	err := e.store.Update(ctx, func(tx storage.Tx) error {
		ad, err := tx.Ad(req.Ad)
		if errors.Is(err, storage.ErrNotFound) {
			return reject(StageReceived, ErrAdNotFound)
		}
		if err != nil {
			return err
		}
		screen, err := tx.Screen(req.Screen)
		if errors.Is(err, storage.ErrNotFound) {
			return reject(StageReceived, ErrScreenNotFound)
		}
		if err != nil {
			return err
		}
		balance, err := tx.Balance(screen.OwnerWallet)
		if err != nil {
			return err
		}

		o, err := Settle(Input{Claim: req, Ad: ad, Screen: screen, PayeeBalance: balance})
		if err != nil {
			return err
		}
		if err := tx.PutAd(req.Ad, o.Ad); err != nil {
			return err
		}
		if err := tx.PutScreen(req.Screen, o.Screen); err != nil {
			return err
		}
		if err := tx.PutBalance(o.Payee, o.PayeeBalance); err != nil {
			return err
		}
		pub, err := loadPublisher(tx, o.Ad.Authority)
		if err != nil {
			return err
		}
		if pub.TotalSpent, err = add(pub.TotalSpent, o.Amount); err != nil {
			return reject(StageEligibilityChecked, err)
		}
		if err := tx.PutPublisher(pub); err != nil {
			return err
		}
		out = o
		return nil
	})
	if e.metrics != nil {
		e.metrics.SettlementLatency.Observe(time.Since(start).Seconds())
	}
	now := e.nowFn()

	if err != nil {
		kind := Kind(err)
		if e.metrics != nil {
			e.metrics.Proofs.WithLabelValues(kind).Inc()
		}
		e.log.Warn("proof rejected",
			log.Stringer("ad", req.Ad),
			log.Stringer("screen", req.Screen),
			log.Uint64("nonce", req.Nonce),
			log.String("kind", kind),
			log.Error(err),
		)
		e.emitter.Emit(Event{
			Type:   EventProofRejected,
			Time:   now,
			Ad:     req.Ad,
			Screen: req.Screen,
			Nonce:  req.Nonce,
			Reason: kind,
		})
		return nil, err
	}

	var receiptID ids.ID
	copy(receiptID[:], hashing.ComputeHash256(out.Message))
	receipt := &Receipt{
		ID:        receiptID,
		Ad:        req.Ad,
		Screen:    req.Screen,
		Payee:     out.Payee,
		Nonce:     req.Nonce,
		Timestamp: req.Timestamp,
		Amount:    out.Amount,
		PlayCount: out.Ad.PlayCount,
		SettledAt: now,
	}

	if e.metrics != nil {
		e.metrics.Proofs.WithLabelValues("settled").Inc()
		e.metrics.PayoutUnits.Add(float64(out.Amount))
	}
	e.log.Debug("proof settled",
		log.Stringer("receipt", receipt.ID),
		log.Stringer("ad", req.Ad),
		log.Stringer("screen", req.Screen),
		log.Uint64("nonce", req.Nonce),
		log.Uint64("amount", out.Amount),
		log.Uint64("plays", out.Ad.PlayCount),
	)
	e.emitter.Emit(Event{
		Type:      EventProofSettled,
		Time:      now,
		Ad:        req.Ad,
		Screen:    req.Screen,
		Wallet:    out.Payee,
		Nonce:     req.Nonce,
		Amount:    out.Amount,
		PlayCount: out.Ad.PlayCount,
		Active:    out.Ad.IsActive,
	})
	return receipt, nil
}

// Ad returns the campaign at id.
func (e *Engine) Ad(ctx context.Context, id ids.ID) (*accounts.AdAccount, error) {
	var ad *accounts.AdAccount
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		ad, err = loadAd(tx, id)
		return err
	})
	return ad, err
}

// Screen returns the screen at id.
func (e *Engine) Screen(ctx context.Context, id ids.ID) (*accounts.ScreenAccount, error) {
	var screen *accounts.ScreenAccount
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		screen, err = loadScreen(tx, id)
		return err
	})
	return screen, err
}

// Balance returns the payout credit accumulated by wallet.
func (e *Engine) Balance(ctx context.Context, wallet ids.ID) (uint64, error) {
	var balance uint64
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		balance, err = tx.Balance(wallet)
		return err
	})
	return balance, err
}

// Publisher returns the campaign totals of authority. An authority that
// never created a campaign reads as an empty record.
func (e *Engine) Publisher(ctx context.Context, authority ids.ID) (*accounts.PublisherAccount, error) {
	var pub *accounts.PublisherAccount
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		pub, err = loadPublisher(tx, authority)
		return err
	})
	return pub, err
}

// AdEntry is a campaign with its address.
type AdEntry struct {
	ID ids.ID              `json:"id"`
	Ad *accounts.AdAccount `json:"ad"`
}

// Ads lists campaigns. With activeOnly, closed, paused and exhausted
// campaigns are left out.
func (e *Engine) Ads(ctx context.Context, activeOnly bool) ([]AdEntry, error) {
	var out []AdEntry
	err := e.store.View(ctx, func(tx storage.Tx) error {
		return tx.Ads(func(id ids.ID, ad *accounts.AdAccount) error {
			if activeOnly && (!ad.IsActive || ad.Exhausted()) {
				return nil
			}
			out = append(out, AdEntry{ID: id, Ad: ad})
			return nil
		})
	})
	return out, err
}

func loadAd(tx storage.Tx, id ids.ID) (*accounts.AdAccount, error) {
	ad, err := tx.Ad(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAdNotFound
	}
	return ad, err
}

func loadScreen(tx storage.Tx, id ids.ID) (*accounts.ScreenAccount, error) {
	screen, err := tx.Screen(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrScreenNotFound
	}
	return screen, err
}

func loadPublisher(tx storage.Tx, authority ids.ID) (*accounts.PublisherAccount, error) {
	pub, err := tx.Publisher(authority)
	if errors.Is(err, storage.ErrNotFound) {
		return &accounts.PublisherAccount{Authority: authority}, nil
	}
	return pub, err
}
