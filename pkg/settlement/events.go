// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"time"

	"github.com/luxfi/samizdat/pkg/ids"
)

const (
	EventProofSettled     = "proof.settled"
	EventProofRejected    = "proof.rejected"
	EventAdCreated        = "ad.created"
	EventAdFunded         = "ad.funded"
	EventAdStatus         = "ad.status"
	EventAdUpdated        = "ad.updated"
	EventAdClosed         = "ad.closed"
	EventScreenRegistered = "screen.registered"
	EventScreenStatus     = "screen.status"
	EventScreenUpdated    = "screen.updated"
)

// Event is emitted after a change commits, or when a proof is rejected.
// Wallet is the payee for settlements, the authority for ad events and
// the owner for screen events. Amount is the bounty, the funding added or
// the refund, depending on Type.
type Event struct {
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	Ad        ids.ID    `json:"ad"`
	Screen    ids.ID    `json:"screen"`
	Wallet    ids.ID    `json:"wallet"`
	Nonce     uint64    `json:"nonce,omitempty"`
	Amount    uint64    `json:"amount,omitempty"`
	PlayCount uint64    `json:"playCount,omitempty"`
	Active    bool      `json:"active"`
	Reason    string    `json:"reason,omitempty"`
}

// Emitter receives engine events. Emit must not block for long; it runs on
// the caller's goroutine after the store transaction has returned.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter drops events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans an event out in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(evt Event) {
	for _, e := range m {
		e.Emit(evt)
	}
}

// EmitterFunc adapts a function.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(evt Event) { f(evt) }
