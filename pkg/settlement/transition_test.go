// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"crypto/ed25519"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/proof"
)

type claimFixture struct {
	priv     ed25519.PrivateKey
	adID     ids.ID
	screenID ids.ID
	in       Input
}

func newClaimFixture(t testing.TB) *claimFixture {
	key, priv, err := proof.GenerateKey(nil)
	require.NoError(t, err)

	f := &claimFixture{
		priv:     priv,
		adID:     ids.GenerateTestID(),
		screenID: ids.GenerateTestID(),
	}
	f.in = Input{
		Ad: &accounts.AdAccount{
			Authority:     ids.GenerateTestID(),
			IsActive:      true,
			BountyPerPlay: 100,
			MaxPlays:      10,
			TotalFunded:   1000,
		},
		Screen: &accounts.ScreenAccount{
			OwnerWallet:    ids.GenerateTestID(),
			SigningKey:     key,
			IsActive:       true,
			LastProofNonce: 5,
		},
	}
	f.in.Claim = f.claim(6)
	return f
}

func (f *claimFixture) claim(nonce uint64) *SubmitProofRequest {
	req := &SubmitProofRequest{
		Ad:        f.adID,
		Screen:    f.screenID,
		Nonce:     nonce,
		Timestamp: 1_700_000_000,
	}
	req.Signature = proof.Sign(f.priv, req.Payload())
	return req
}

func TestSettleSuccess(t *testing.T) {
	require := require.New(t)
	f := newClaimFixture(t)
	f.in.PayeeBalance = 50

	adBefore, screenBefore := f.in.Ad.Clone(), f.in.Screen.Clone()

	out, err := Settle(f.in)
	require.NoError(err)

	require.Equal(uint64(6), out.Screen.LastProofNonce)
	require.Equal(uint64(1), out.Ad.PlayCount)
	require.Equal(uint64(100), out.Ad.TotalSpent)
	require.Equal(uint64(1), out.Screen.TotalPlays)
	require.Equal(uint64(100), out.Screen.TotalEarnings)
	require.Equal(uint64(150), out.PayeeBalance)
	require.Equal(uint64(100), out.Amount)
	require.Equal(f.in.Screen.OwnerWallet, out.Payee)
	require.Equal(f.in.Claim.Payload().Bytes(), out.Message)

	// inputs untouched
	require.Equal(adBefore, f.in.Ad)
	require.Equal(screenBefore, f.in.Screen)

	escrow, err := out.Ad.Escrow()
	require.NoError(err)
	require.Equal(uint64(900), escrow)
}

func TestSettleZeroBounty(t *testing.T) {
	require := require.New(t)
	f := newClaimFixture(t)
	f.in.Ad.BountyPerPlay = 0
	f.in.Ad.TotalFunded = 0

	out, err := Settle(f.in)
	require.NoError(err)
	require.Zero(out.Amount)
	require.Equal(uint64(1), out.Ad.PlayCount)
}

func TestSettleRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *claimFixture)
		wantErr error
		stage   Stage
	}{
		{
			name:    "unknown version",
			mutate:  func(f *claimFixture) { f.in.Claim.Version = 2 },
			wantErr: ErrDomainMismatch,
			stage:   StageReceived,
		},
		{
			name:    "signature over another nonce",
			mutate:  func(f *claimFixture) { f.in.Claim.Signature = f.claim(7).Signature },
			wantErr: ErrInvalidSignature,
			stage:   StageDomainChecked,
		},
		{
			name: "signature by another key",
			mutate: func(f *claimFixture) {
				_, other, _ := proof.GenerateKey(nil)
				f.in.Claim.Signature = proof.Sign(other, f.in.Claim.Payload())
			},
			wantErr: ErrInvalidSignature,
			stage:   StageDomainChecked,
		},
		{
			name:    "truncated signature",
			mutate:  func(f *claimFixture) { f.in.Claim.Signature = f.in.Claim.Signature[:10] },
			wantErr: ErrInvalidSignature,
			stage:   StageDomainChecked,
		},
		{
			name: "signature checked before nonce",
			mutate: func(f *claimFixture) {
				f.in.Claim = f.claim(5)
				f.in.Claim.Signature[0] ^= 1
			},
			wantErr: ErrInvalidSignature,
			stage:   StageDomainChecked,
		},
		{
			name:    "equal nonce",
			mutate:  func(f *claimFixture) { f.in.Claim = f.claim(5) },
			wantErr: ErrReplayedNonce,
			stage:   StageSignatureVerified,
		},
		{
			name:    "lower nonce",
			mutate:  func(f *claimFixture) { f.in.Claim = f.claim(1) },
			wantErr: ErrReplayedNonce,
			stage:   StageSignatureVerified,
		},
		{
			name: "ad inactive before screen inactive",
			mutate: func(f *claimFixture) {
				f.in.Ad.IsActive = false
				f.in.Screen.IsActive = false
			},
			wantErr: ErrAdInactive,
			stage:   StageNonceChecked,
		},
		{
			name:    "screen inactive",
			mutate:  func(f *claimFixture) { f.in.Screen.IsActive = false },
			wantErr: ErrScreenInactive,
			stage:   StageNonceChecked,
		},
		{
			name: "targets another screen",
			mutate: func(f *claimFixture) {
				other := ids.GenerateTestID()
				f.in.Ad.TargetScreen = &other
				f.in.Ad.PlayCount = f.in.Ad.MaxPlays
			},
			wantErr: ErrScreenMismatch,
			stage:   StageNonceChecked,
		},
		{
			name: "budget exhausted before escrow",
			mutate: func(f *claimFixture) {
				f.in.Ad.PlayCount = 10
				f.in.Ad.TotalFunded = 0
			},
			wantErr: ErrBudgetExhausted,
			stage:   StageNonceChecked,
		},
		{
			name: "escrow below one bounty",
			mutate: func(f *claimFixture) {
				f.in.Ad.PlayCount = 2
				f.in.Ad.TotalFunded = 299
			},
			wantErr: ErrInsufficientEscrow,
			stage:   StageNonceChecked,
		},
		{
			name: "spent exceeds funded",
			mutate: func(f *claimFixture) {
				f.in.Ad.PlayCount = 3
				f.in.Ad.TotalFunded = 200
			},
			wantErr: ErrInsufficientEscrow,
			stage:   StageNonceChecked,
		},
		{
			name: "spent overflows",
			mutate: func(f *claimFixture) {
				f.in.Ad.BountyPerPlay = math.MaxUint64
				f.in.Ad.PlayCount = 2
				f.in.Ad.TotalFunded = math.MaxUint64
			},
			wantErr: ErrArithmeticOverflow,
			stage:   StageNonceChecked,
		},
		{
			name:    "payee balance overflows",
			mutate:  func(f *claimFixture) { f.in.PayeeBalance = math.MaxUint64 - 99 },
			wantErr: ErrArithmeticOverflow,
			stage:   StageEligibilityChecked,
		},
		{
			name:    "screen earnings overflow",
			mutate:  func(f *claimFixture) { f.in.Screen.TotalEarnings = math.MaxUint64 },
			wantErr: ErrArithmeticOverflow,
			stage:   StageEligibilityChecked,
		},
		{
			name:    "screen play counter overflows",
			mutate:  func(f *claimFixture) { f.in.Screen.TotalPlays = math.MaxUint64 },
			wantErr: ErrArithmeticOverflow,
			stage:   StageEligibilityChecked,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			f := newClaimFixture(t)
			tt.mutate(f)
			adBefore, screenBefore := f.in.Ad.Clone(), f.in.Screen.Clone()

			out, err := Settle(f.in)
			require.Nil(out)
			require.ErrorIs(err, tt.wantErr)

			var serr *Error
			require.True(errors.As(err, &serr))
			require.Equal(tt.stage, serr.Stage)

			require.Equal(adBefore, f.in.Ad)
			require.Equal(screenBefore, f.in.Screen)
		})
	}
}

func TestSettleMissingRecords(t *testing.T) {
	require := require.New(t)
	f := newClaimFixture(t)

	in := f.in
	in.Ad = nil
	_, err := Settle(in)
	require.ErrorIs(err, ErrAdNotFound)

	in = f.in
	in.Screen = nil
	_, err = Settle(in)
	require.ErrorIs(err, ErrScreenNotFound)
}

func TestCheckNonce(t *testing.T) {
	require := require.New(t)

	require.ErrorIs(CheckNonce(5, 5), ErrReplayedNonce)
	require.ErrorIs(CheckNonce(5, 4), ErrReplayedNonce)
	require.NoError(CheckNonce(5, 6))
	require.NoError(CheckNonce(0, 1))
	require.ErrorIs(CheckNonce(math.MaxUint64, math.MaxUint64), ErrReplayedNonce)
}

func TestKind(t *testing.T) {
	require := require.New(t)

	require.Equal("ok", Kind(nil))
	require.Equal("replayed_nonce", Kind(reject(StageSignatureVerified, ErrReplayedNonce)))
	require.Equal("invalid_signature", Kind(proof.ErrInvalidSignature))
	require.Equal("internal", Kind(errors.New("disk on fire")))
	require.Equal("eligibility_checked", StageEligibilityChecked.String())
}

func BenchmarkSettle(b *testing.B) {
	f := newClaimFixture(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Settle(f.in)
	}
}
