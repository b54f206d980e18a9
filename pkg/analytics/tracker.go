// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package analytics

import (
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/settlement"
)

// Decimals is the number of fractional digits in one whole payout unit.
const Decimals = 9

const (
	defaultBucketSize = time.Minute
	defaultBuckets    = 60
	defaultHistory    = 1024
)

// Tracker aggregates settlement events in memory. It implements
// settlement.Emitter and is safe for concurrent use.
type Tracker struct {
	// Real-time counters
	TotalSettled  atomic.Uint64
	TotalRejected atomic.Uint64
	TotalAdmin    atomic.Uint64

	mu         sync.RWMutex
	payout     *big.Int
	refunds    *big.Int
	rejections map[string]uint64
	campaigns  map[ids.ID]*CampaignStats
	screens    map[ids.ID]*ScreenStats

	series     map[int64]*Bucket
	bucketSize time.Duration
	maxBuckets int

	history    []settlement.Event
	historyLen int
	next       int
}

// CampaignStats tracks one campaign.
type CampaignStats struct {
	Ad        ids.ID    `json:"ad"`
	Authority ids.ID    `json:"authority"`
	Plays     uint64    `json:"plays"`
	Rejected  uint64    `json:"rejected"`
	Spent     *big.Int  `json:"-"`
	Funded    *big.Int  `json:"-"`
	Closed    bool      `json:"closed"`
	LastPlay  time.Time `json:"lastPlay,omitempty"`
}

// ScreenStats tracks one screen.
type ScreenStats struct {
	Screen   ids.ID    `json:"screen"`
	Owner    ids.ID    `json:"owner"`
	Plays    uint64    `json:"plays"`
	Rejected uint64    `json:"rejected"`
	Earnings *big.Int  `json:"-"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

// Bucket holds settlement counts for one time slot.
type Bucket struct {
	Start    time.Time       `json:"start"`
	Settled  uint64          `json:"settled"`
	Rejected uint64          `json:"rejected"`
	Payout   decimal.Decimal `json:"payout"`
}

// Summary is a point-in-time copy of the tracker.
type Summary struct {
	Settled    uint64            `json:"settled"`
	Rejected   uint64            `json:"rejected"`
	AdminOps   uint64            `json:"adminOps"`
	Payout     decimal.Decimal   `json:"payout"`
	Refunded   decimal.Decimal   `json:"refunded"`
	Rejections map[string]uint64 `json:"rejections"`
	Campaigns  int               `json:"campaigns"`
	Screens    int               `json:"screens"`
	Buckets    []Bucket          `json:"buckets"`
}

// Report is a per-campaign or per-screen view with amounts in whole units.
type Report struct {
	ID       ids.ID          `json:"id"`
	Plays    uint64          `json:"plays"`
	Rejected uint64          `json:"rejected"`
	Amount   decimal.Decimal `json:"amount"`
	Funded   decimal.Decimal `json:"funded,omitempty"`
	Closed   bool            `json:"closed,omitempty"`
	Last     time.Time       `json:"last,omitempty"`
}

// QueryFilter selects recent events. Zero values match everything.
type QueryFilter struct {
	Types  []string
	Ad     ids.ID
	Screen ids.ID
	Since  time.Time
	Limit  int
}

// NewTracker creates a tracker with one-minute buckets kept for an hour.
func NewTracker() *Tracker {
	return &Tracker{
		payout:     new(big.Int),
		refunds:    new(big.Int),
		rejections: make(map[string]uint64),
		campaigns:  make(map[ids.ID]*CampaignStats),
		screens:    make(map[ids.ID]*ScreenStats),
		series:     make(map[int64]*Bucket),
		bucketSize: defaultBucketSize,
		maxBuckets: defaultBuckets,
		history:    make([]settlement.Event, defaultHistory),
	}
}

// Emit records evt.
func (t *Tracker) Emit(evt settlement.Event) {
	switch evt.Type {
	case settlement.EventProofSettled:
		t.TotalSettled.Add(1)
	case settlement.EventProofRejected:
		t.TotalRejected.Add(1)
	default:
		t.TotalAdmin.Add(1)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.remember(evt)
	switch evt.Type {
	case settlement.EventProofSettled:
		amount := new(big.Int).SetUint64(evt.Amount)
		t.payout.Add(t.payout, amount)

		c := t.campaign(evt.Ad)
		c.Plays++
		c.Spent.Add(c.Spent, amount)
		c.LastPlay = evt.Time

		s := t.screen(evt.Screen)
		s.Owner = evt.Wallet
		s.Plays++
		s.Earnings.Add(s.Earnings, amount)
		s.LastSeen = evt.Time

		b := t.bucket(evt.Time)
		b.Settled++
		b.Payout = b.Payout.Add(FormatUnits(evt.Amount))

	case settlement.EventProofRejected:
		t.rejections[evt.Reason]++
		if c, ok := t.campaigns[evt.Ad]; ok {
			c.Rejected++
		}
		if s, ok := t.screens[evt.Screen]; ok {
			s.Rejected++
		}
		t.bucket(evt.Time).Rejected++

	case settlement.EventAdCreated, settlement.EventAdFunded:
		c := t.campaign(evt.Ad)
		c.Authority = evt.Wallet
		c.Funded.Add(c.Funded, new(big.Int).SetUint64(evt.Amount))

	case settlement.EventAdClosed:
		c := t.campaign(evt.Ad)
		c.Closed = true
		t.refunds.Add(t.refunds, new(big.Int).SetUint64(evt.Amount))

	case settlement.EventScreenRegistered:
		s := t.screen(evt.Screen)
		s.Owner = evt.Wallet
		s.LastSeen = evt.Time
	}
}

// Summary returns the current totals.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rejections := make(map[string]uint64, len(t.rejections))
	for k, v := range t.rejections {
		rejections[k] = v
	}
	buckets := make([]Bucket, 0, len(t.series))
	for _, b := range t.series {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start.Before(buckets[j].Start) })

	return Summary{
		Settled:    t.TotalSettled.Load(),
		Rejected:   t.TotalRejected.Load(),
		AdminOps:   t.TotalAdmin.Load(),
		Payout:     units(t.payout),
		Refunded:   units(t.refunds),
		Rejections: rejections,
		Campaigns:  len(t.campaigns),
		Screens:    len(t.screens),
		Buckets:    buckets,
	}
}

// Campaign reports the activity of one ad.
func (t *Tracker) Campaign(id ids.ID) (Report, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.campaigns[id]
	if !ok {
		return Report{}, false
	}
	return Report{
		ID:       id,
		Plays:    c.Plays,
		Rejected: c.Rejected,
		Amount:   units(c.Spent),
		Funded:   units(c.Funded),
		Closed:   c.Closed,
		Last:     c.LastPlay,
	}, true
}

// Screen reports the activity of one screen.
func (t *Tracker) Screen(id ids.ID) (Report, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.screens[id]
	if !ok {
		return Report{}, false
	}
	return Report{
		ID:       id,
		Plays:    s.Plays,
		Rejected: s.Rejected,
		Amount:   units(s.Earnings),
		Last:     s.LastSeen,
	}, true
}

// Recent returns retained events matching filter, newest first.
func (t *Tracker) Recent(filter QueryFilter) []settlement.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]settlement.Event, 0)
	for i := 0; i < t.historyLen; i++ {
		idx := (t.next - 1 - i + len(t.history)) % len(t.history)
		evt := t.history[idx]
		if !matches(evt, filter) {
			continue
		}
		out = append(out, evt)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// FormatUnits converts base units to whole units.
func FormatUnits(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -Decimals)
}

func units(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -Decimals)
}

func matches(evt settlement.Event, filter QueryFilter) bool {
	if !filter.Since.IsZero() && evt.Time.Before(filter.Since) {
		return false
	}
	if !filter.Ad.IsEmpty() && evt.Ad != filter.Ad {
		return false
	}
	if !filter.Screen.IsEmpty() && evt.Screen != filter.Screen {
		return false
	}
	if len(filter.Types) == 0 {
		return true
	}
	for _, typ := range filter.Types {
		if evt.Type == typ {
			return true
		}
	}
	return false
}

func (t *Tracker) remember(evt settlement.Event) {
	t.history[t.next] = evt
	t.next = (t.next + 1) % len(t.history)
	if t.historyLen < len(t.history) {
		t.historyLen++
	}
}

func (t *Tracker) campaign(id ids.ID) *CampaignStats {
	c, ok := t.campaigns[id]
	if !ok {
		c = &CampaignStats{Ad: id, Spent: new(big.Int), Funded: new(big.Int)}
		t.campaigns[id] = c
	}
	return c
}

func (t *Tracker) screen(id ids.ID) *ScreenStats {
	s, ok := t.screens[id]
	if !ok {
		s = &ScreenStats{Screen: id, Earnings: new(big.Int)}
		t.screens[id] = s
	}
	return s
}

func (t *Tracker) bucket(at time.Time) *Bucket {
	slot := at.Unix() / int64(t.bucketSize.Seconds())
	b, ok := t.series[slot]
	if ok {
		return b
	}
	b = &Bucket{Start: time.Unix(slot*int64(t.bucketSize.Seconds()), 0).UTC(), Payout: decimal.Zero}
	t.series[slot] = b

	// drop the oldest slots
	for len(t.series) > t.maxBuckets {
		oldest := slot
		for k := range t.series {
			if k < oldest {
				oldest = k
			}
		}
		delete(t.series, oldest)
	}
	return b
}
