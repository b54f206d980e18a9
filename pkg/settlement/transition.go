// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/proof"
)

// PayloadVersion1 is the only accepted payload version. Zero is read as 1.
const PayloadVersion1 uint8 = 1

// SubmitProofRequest is a display claim as submitted by a renderer.
type SubmitProofRequest struct {
	Version   uint8  `json:"version,omitempty"`
	Ad        ids.ID `json:"ad"`
	Screen    ids.ID `json:"screen"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Signature []byte `json:"signature"`
}

// Payload is the claim the signature must cover.
func (r *SubmitProofRequest) Payload() proof.PayloadV1 {
	return proof.PayloadV1{
		Ad:        r.Ad,
		Screen:    r.Screen,
		Nonce:     r.Nonce,
		Timestamp: r.Timestamp,
	}
}

// Input is everything a settlement reads.
type Input struct {
	Claim        *SubmitProofRequest
	Ad           *accounts.AdAccount
	Screen       *accounts.ScreenAccount
	PayeeBalance uint64
}

// Outcome is everything a settlement writes. The records are fresh copies;
// the Input records are never modified.
type Outcome struct {
	Ad           *accounts.AdAccount
	Screen       *accounts.ScreenAccount
	Payee        ids.ID
	PayeeBalance uint64
	Amount       uint64
	Message      []byte
}

// Settle decides a claim against the current records. It has no side
// effects: on error nothing is returned to persist, on success the
// Outcome holds every record the store must write together.
func Settle(in Input) (*Outcome, error) {
	c := in.Claim
	if in.Ad == nil {
		return nil, reject(StageReceived, ErrAdNotFound)
	}
	if in.Screen == nil {
		return nil, reject(StageReceived, ErrScreenNotFound)
	}

	if c.Version != 0 && c.Version != PayloadVersion1 {
		return nil, reject(StageReceived, ErrDomainMismatch)
	}
	msg := c.Payload().Bytes()

	if err := proof.Verify(in.Screen.SigningKey, msg, c.Signature); err != nil {
		return nil, reject(StageDomainChecked, err)
	}
	if err := CheckNonce(in.Screen.LastProofNonce, c.Nonce); err != nil {
		return nil, reject(StageSignatureVerified, err)
	}
	if err := CheckEligibility(in.Ad, in.Screen, c.Screen); err != nil {
		return nil, reject(StageNonceChecked, err)
	}

	ad := in.Ad.Clone()
	screen := in.Screen.Clone()
	bounty := ad.BountyPerPlay
	var err error

	screen.LastProofNonce = c.Nonce
	if ad.PlayCount, err = add(ad.PlayCount, 1); err != nil {
		return nil, reject(StageEligibilityChecked, err)
	}
	if ad.TotalSpent, err = add(ad.TotalSpent, bounty); err != nil {
		return nil, reject(StageEligibilityChecked, err)
	}
	if screen.TotalPlays, err = add(screen.TotalPlays, 1); err != nil {
		return nil, reject(StageEligibilityChecked, err)
	}
	if screen.TotalEarnings, err = add(screen.TotalEarnings, bounty); err != nil {
		return nil, reject(StageEligibilityChecked, err)
	}
	balance, err := add(in.PayeeBalance, bounty)
	if err != nil {
		return nil, reject(StageEligibilityChecked, err)
	}

	return &Outcome{
		Ad:           ad,
		Screen:       screen,
		Payee:        screen.OwnerWallet,
		PayeeBalance: balance,
		Amount:       bounty,
		Message:      msg,
	}, nil
}
