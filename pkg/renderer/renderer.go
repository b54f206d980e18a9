// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package renderer is the screen side of the protocol: it picks campaigns
// under the operator's content policy, signs display claims with the
// screen's key and reports them for settlement.
package renderer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/proof"
	"github.com/luxfi/samizdat/pkg/settlement"
	"github.com/luxfi/samizdat/pkg/tags"
)

var (
	ErrNoEligibleAd = errors.New("renderer: no eligible ad")
	ErrKeyMismatch  = errors.New("renderer: signing key does not match the registered screen")
)

// Backend is the settlement service as seen by a screen.
type Backend interface {
	SubmitProof(ctx context.Context, req *settlement.SubmitProofRequest) (*settlement.Receipt, error)
	GetScreen(ctx context.Context, screen ids.ID) (*accounts.ScreenAccount, error)
	ListAds(ctx context.Context, activeOnly bool) ([]settlement.AdEntry, error)
}

// Config describes one screen.
type Config struct {
	Screen ids.ID
	Key    ed25519.PrivateKey
	Policy Policy
	// LastNonce is the highest nonce already used by this screen.
	LastNonce uint64
}

// Renderer signs and reports plays for one screen. It is safe for
// concurrent use; nonces are handed out strictly increasing.
type Renderer struct {
	screen  ids.ID
	key     ed25519.PrivateKey
	keyID   ids.ID
	policy  Policy
	backend Backend
	log     log.Logger
	nowFn   func() time.Time

	mu    sync.Mutex
	nonce uint64
	// blocked is the owner's on-record block list, merged into policy.
	blocked tags.Mask
}

// New creates a renderer. backend may be nil when only Attest is used.
func New(cfg Config, backend Backend, logger log.Logger) (*Renderer, error) {
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("renderer: bad private key length %d", len(cfg.Key))
	}
	if logger == nil {
		logger = log.NoOp()
	}
	return &Renderer{
		screen:  cfg.Screen,
		key:     cfg.Key,
		keyID:   proof.KeyID(cfg.Key.Public().(ed25519.PublicKey)),
		policy:  cfg.Policy,
		backend: backend,
		log:     logger.With(log.Stringer("screen", cfg.Screen)),
		nowFn:   time.Now,
		nonce:   cfg.LastNonce,
	}, nil
}

// KeyID is the public key to register for this screen.
func (r *Renderer) KeyID() ids.ID { return r.keyID }

// LastNonce is the highest nonce handed out so far.
func (r *Renderer) LastNonce() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nonce
}

// Sync raises the local nonce to the screen's on-record anchor, picks up
// the owner's blocked categories and checks that the registered key is
// ours.
func (r *Renderer) Sync(ctx context.Context) error {
	screen, err := r.backend.GetScreen(ctx, r.screen)
	if err != nil {
		return err
	}
	if screen.SigningKey != r.keyID {
		return ErrKeyMismatch
	}
	r.mu.Lock()
	if screen.LastProofNonce > r.nonce {
		r.nonce = screen.LastProofNonce
	}
	r.blocked = screen.BlockedTagMask
	r.mu.Unlock()
	r.log.Debug("synced nonce", log.Uint64("nonce", screen.LastProofNonce))
	return nil
}

// Attest signs a claim that ad was displayed now.
func (r *Renderer) Attest(ad ids.ID) (*settlement.SubmitProofRequest, error) {
	r.mu.Lock()
	if r.nonce == ^uint64(0) {
		r.mu.Unlock()
		return nil, settlement.ErrArithmeticOverflow
	}
	r.nonce++
	nonce := r.nonce
	r.mu.Unlock()

	req := &settlement.SubmitProofRequest{
		Version:   settlement.PayloadVersion1,
		Ad:        ad,
		Screen:    r.screen,
		Nonce:     nonce,
		Timestamp: r.nowFn().Unix(),
	}
	req.Signature = proof.Sign(r.key, req.Payload())
	return req, nil
}

// Choose picks the best paying campaign the policy allows.
func (r *Renderer) Choose(ctx context.Context) (*settlement.AdEntry, error) {
	ads, err := r.backend.ListAds(ctx, true)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	policy := r.policy
	policy.Blocked |= r.blocked
	r.mu.Unlock()

	eligible := policy.Eligible(ads, r.screen)
	if len(eligible) == 0 {
		return nil, ErrNoEligibleAd
	}
	return &eligible[0], nil
}

// Report attests a play of ad and submits it. A rejected claim is not
// retried; its nonce is spent either way.
func (r *Renderer) Report(ctx context.Context, ad ids.ID) (*settlement.Receipt, error) {
	req, err := r.Attest(ad)
	if err != nil {
		return nil, err
	}
	receipt, err := r.backend.SubmitProof(ctx, req)
	if err != nil {
		r.log.Warn("play rejected", log.Stringer("ad", ad), log.Uint64("nonce", req.Nonce), log.Error(err))
		return nil, err
	}
	r.log.Debug("play settled",
		log.Stringer("ad", ad),
		log.Uint64("nonce", req.Nonce),
		log.Uint64("amount", receipt.Amount),
	)
	return receipt, nil
}

// PlayNext chooses a campaign and reports a play of it.
func (r *Renderer) PlayNext(ctx context.Context) (*settlement.Receipt, error) {
	entry, err := r.Choose(ctx)
	if err != nil {
		return nil, err
	}
	return r.Report(ctx, entry.ID)
}
