// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	require := require.New(t)

	m, err := NewMetrics()
	require.NoError(err)

	m.Proofs.WithLabelValues("settled").Inc()
	m.Proofs.WithLabelValues("replayed_nonce").Inc()
	m.Proofs.WithLabelValues("replayed_nonce").Inc()
	m.PayoutUnits.Add(100)
	m.AdminOps.WithLabelValues("fund_ad", "ok").Inc()
	m.FeedSubscribers.Inc()
	m.FeedSubscribers.Inc()
	m.FeedSubscribers.Dec()

	for _, tt := range []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"proofs_total", map[string]string{"result": "settled"}, 1},
		{"proofs_total", map[string]string{"result": "replayed_nonce"}, 2},
		{"proofs_total", map[string]string{"result": "ad_not_found"}, 0},
		{"payout_units_total", nil, 100},
		{"admin_ops_total", map[string]string{"op": "fund_ad", "result": "ok"}, 1},
		{"feed_subscribers", nil, 1},
	} {
		got, err := m.Value(tt.name, tt.labels)
		require.NoError(err)
		require.Equal(tt.want, got, tt.name)
	}

	families, err := m.GetGatherer().Gather()
	require.NoError(err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, " ")
	require.Contains(joined, "proofs_total")
	require.Contains(joined, "payout_units_total")

	// separate instances do not collide
	other, err := NewMetrics()
	require.NoError(err)
	got, err := other.Value("proofs_total", map[string]string{"result": "settled"})
	require.NoError(err)
	require.Zero(got)
}
