// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"errors"
	"fmt"

	"github.com/luxfi/samizdat/pkg/proof"
)

var (
	// Proof path
	ErrDomainMismatch     = proof.ErrDomainMismatch
	ErrInvalidSignature   = proof.ErrInvalidSignature
	ErrReplayedNonce      = errors.New("replayed nonce")
	ErrAdInactive         = errors.New("ad inactive")
	ErrScreenInactive     = errors.New("screen inactive")
	ErrScreenMismatch     = errors.New("campaign targets a different screen")
	ErrBudgetExhausted    = errors.New("budget exhausted")
	ErrInsufficientEscrow = errors.New("insufficient escrow")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// Management
	ErrUnauthorized   = errors.New("caller is not the record authority")
	ErrAdNotFound     = errors.New("ad not found")
	ErrScreenNotFound = errors.New("screen not found")
	ErrAdExists       = errors.New("ad already exists")
	ErrScreenExists   = errors.New("screen already exists")
	ErrAdClosed       = errors.New("ad closed")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidRecord  = errors.New("invalid record")
)

// Stage is a step of a proof submission. An attempt only persists
// anything once it reaches StageSettled.
type Stage uint8

const (
	StageReceived Stage = iota
	StageDomainChecked
	StageSignatureVerified
	StageNonceChecked
	StageEligibilityChecked
	StageSettled
)

var stageNames = [...]string{
	StageReceived:           "received",
	StageDomainChecked:      "domain_checked",
	StageSignatureVerified:  "signature_verified",
	StageNonceChecked:       "nonce_checked",
	StageEligibilityChecked: "eligibility_checked",
	StageSettled:            "settled",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", s)
}

// Error is a rejected proof. Stage is the last stage the attempt reached.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("settlement: %v (after %s)", e.Err, e.Stage)
}

func (e *Error) Unwrap() error { return e.Err }

func reject(stage Stage, err error) error {
	return &Error{Stage: stage, Err: err}
}

var kinds = []struct {
	err  error
	kind string
}{
	{ErrDomainMismatch, "domain_mismatch"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrReplayedNonce, "replayed_nonce"},
	{ErrAdInactive, "ad_inactive"},
	{ErrScreenInactive, "screen_inactive"},
	{ErrScreenMismatch, "screen_mismatch"},
	{ErrBudgetExhausted, "budget_exhausted"},
	{ErrInsufficientEscrow, "insufficient_escrow"},
	{ErrArithmeticOverflow, "arithmetic_overflow"},
	{ErrUnauthorized, "unauthorized"},
	{ErrAdNotFound, "ad_not_found"},
	{ErrScreenNotFound, "screen_not_found"},
	{ErrAdExists, "ad_exists"},
	{ErrScreenExists, "screen_exists"},
	{ErrAdClosed, "ad_closed"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidRecord, "invalid_record"},
}

// Kind returns a stable label for err, "ok" for nil and "internal" for
// anything outside the taxonomy.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
