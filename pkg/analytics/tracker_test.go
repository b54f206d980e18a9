// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package analytics

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/settlement"
)

var epoch = time.Unix(1_700_000_040, 0).UTC()

func TestTrackerSettlements(t *testing.T) {
	require := require.New(t)
	tr := NewTracker()

	ad, screen, owner, authority := ids.GenerateTestID(), ids.GenerateTestID(), ids.GenerateTestID(), ids.GenerateTestID()

	tr.Emit(settlement.Event{Type: settlement.EventAdCreated, Time: epoch, Ad: ad, Wallet: authority, Amount: 3_000_000_000})
	tr.Emit(settlement.Event{Type: settlement.EventScreenRegistered, Time: epoch, Screen: screen, Wallet: owner})
	for i := uint64(1); i <= 3; i++ {
		tr.Emit(settlement.Event{
			Type:   settlement.EventProofSettled,
			Time:   epoch.Add(time.Duration(i) * time.Second),
			Ad:     ad,
			Screen: screen,
			Wallet: owner,
			Nonce:  i,
			Amount: 500_000_000,
		})
	}
	tr.Emit(settlement.Event{Type: settlement.EventProofRejected, Time: epoch, Ad: ad, Screen: screen, Reason: "replayed_nonce"})
	tr.Emit(settlement.Event{Type: settlement.EventAdClosed, Time: epoch, Ad: ad, Wallet: authority, Amount: 1_500_000_000})

	sum := tr.Summary()
	require.Equal(uint64(3), sum.Settled)
	require.Equal(uint64(1), sum.Rejected)
	require.Equal(uint64(3), sum.AdminOps)
	require.Equal("1.5", sum.Payout.String())
	require.Equal("1.5", sum.Refunded.String())
	require.Equal(map[string]uint64{"replayed_nonce": 1}, sum.Rejections)
	require.Equal(1, sum.Campaigns)
	require.Equal(1, sum.Screens)
	require.Len(sum.Buckets, 1)
	require.Equal(uint64(3), sum.Buckets[0].Settled)

	campaign, ok := tr.Campaign(ad)
	require.True(ok)
	require.Equal(uint64(3), campaign.Plays)
	require.Equal(uint64(1), campaign.Rejected)
	require.Equal("1.5", campaign.Amount.String())
	require.Equal("3", campaign.Funded.String())
	require.True(campaign.Closed)

	report, ok := tr.Screen(screen)
	require.True(ok)
	require.Equal(uint64(3), report.Plays)
	require.Equal("1.5", report.Amount.String())

	_, ok = tr.Screen(ids.GenerateTestID())
	require.False(ok)
}

func TestTrackerLargeTotals(t *testing.T) {
	require := require.New(t)
	tr := NewTracker()

	ad, screen := ids.GenerateTestID(), ids.GenerateTestID()
	for i := 0; i < 2; i++ {
		tr.Emit(settlement.Event{Type: settlement.EventProofSettled, Time: epoch, Ad: ad, Screen: screen, Amount: math.MaxUint64})
	}
	// sums past uint64 stay exact
	require.Equal("36893488147.41910323", tr.Summary().Payout.String())
}

func TestTrackerRecent(t *testing.T) {
	require := require.New(t)
	tr := NewTracker()
	ad := ids.GenerateTestID()

	for i := 0; i < defaultHistory+10; i++ {
		typ := settlement.EventProofSettled
		if i%2 == 1 {
			typ = settlement.EventProofRejected
		}
		tr.Emit(settlement.Event{Type: typ, Time: epoch, Ad: ad, Nonce: uint64(i)})
	}

	all := tr.Recent(QueryFilter{})
	require.Len(all, defaultHistory)
	require.Equal(uint64(defaultHistory+9), all[0].Nonce)

	rejected := tr.Recent(QueryFilter{Types: []string{settlement.EventProofRejected}, Limit: 3})
	require.Len(rejected, 3)
	for _, evt := range rejected {
		require.Equal(settlement.EventProofRejected, evt.Type)
	}

	require.Empty(tr.Recent(QueryFilter{Ad: ids.GenerateTestID()}))
	require.Empty(tr.Recent(QueryFilter{Since: epoch.Add(time.Hour)}))
}

func TestTrackerBucketRetention(t *testing.T) {
	require := require.New(t)
	tr := NewTracker()

	for i := 0; i < defaultBuckets+5; i++ {
		tr.Emit(settlement.Event{Type: settlement.EventProofSettled, Time: epoch.Add(time.Duration(i) * time.Minute), Amount: 1})
	}
	buckets := tr.Summary().Buckets
	require.Len(buckets, defaultBuckets)
	require.Equal(epoch.Add(5*time.Minute).Truncate(time.Minute), buckets[0].Start)
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()
	ad, screen := ids.GenerateTestID(), ids.GenerateTestID()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Emit(settlement.Event{Type: settlement.EventProofSettled, Time: epoch, Ad: ad, Screen: screen, Amount: 10})
				_ = tr.Summary()
			}
		}()
	}
	wg.Wait()

	report, ok := tr.Campaign(ad)
	require.True(t, ok)
	require.Equal(t, uint64(800), report.Plays)
	require.Equal(t, "0.000008", report.Amount.String())
}

func BenchmarkTrackerEmit(b *testing.B) {
	tr := NewTracker()
	evt := settlement.Event{Type: settlement.EventProofSettled, Time: epoch, Ad: ids.GenerateTestID(), Screen: ids.GenerateTestID(), Amount: 100}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Emit(evt)
	}
}
