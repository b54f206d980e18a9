// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
)

// CheckNonce enforces strictly increasing nonces per screen.
func CheckNonce(last, nonce uint64) error {
	if nonce <= last {
		return ErrReplayedNonce
	}
	return nil
}

// CheckEligibility runs the campaign and screen checks in order; the first
// failure wins. Tag masks are not consulted.
func CheckEligibility(ad *accounts.AdAccount, screen *accounts.ScreenAccount, screenID ids.ID) error {
	if !ad.IsActive {
		return ErrAdInactive
	}
	if !screen.IsActive {
		return ErrScreenInactive
	}
	if ad.TargetScreen != nil && *ad.TargetScreen != screenID {
		return ErrScreenMismatch
	}
	if ad.PlayCount >= ad.MaxPlays {
		return ErrBudgetExhausted
	}
	return checkEscrow(ad)
}

// checkEscrow requires total_funded - play_count*bounty >= bounty.
func checkEscrow(ad *accounts.AdAccount) error {
	spent, err := mul(ad.PlayCount, ad.BountyPerPlay)
	if err != nil {
		return err
	}
	if spent > ad.TotalFunded || ad.TotalFunded-spent < ad.BountyPerPlay {
		return ErrInsufficientEscrow
	}
	return nil
}

func add(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return sum.Uint64(), nil
}

func mul(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return product.Uint64(), nil
}
