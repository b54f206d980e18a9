// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"strings"

	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "samizdat"

// Metrics holds all settlement metrics using luxfi/metric
type Metrics struct {
	metricsInstance metrics.Metrics

	// Proof path
	Proofs            metrics.CounterVec
	PayoutUnits       metrics.Counter
	SettlementLatency metrics.Histogram

	// Management operations
	AdminOps metrics.CounterVec

	// API
	RequestsProcessed metrics.CounterVec
	FeedSubscribers   metrics.Gauge
}

// NewMetrics creates a new metrics instance on its own registry
func NewMetrics() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	instance := factory.New(namespace)

	m := &Metrics{metricsInstance: instance}

	m.Proofs = instance.NewCounterVec(
		"proofs_total",
		"Display proofs submitted, by result",
		[]string{"result"},
	)
	m.PayoutUnits = instance.NewCounter("payout_units_total", "Bounty paid to screen owners in smallest currency units")
	m.SettlementLatency = instance.NewHistogram(
		"settlement_seconds",
		"Time to settle a proof including the store transaction",
		prometheus.DefBuckets,
	)

	m.AdminOps = instance.NewCounterVec(
		"admin_ops_total",
		"Account management operations, by operation and result",
		[]string{"op", "result"},
	)

	m.RequestsProcessed = instance.NewCounterVec(
		"api_requests_processed_total",
		"Total number of API requests processed",
		[]string{"method", "status"},
	)
	m.FeedSubscribers = instance.NewGauge("feed_subscribers", "Connected event feed subscribers")

	return m, nil
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}

// GetRegisterer returns the prometheus registerer
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultRegisterer
}

// Value reads the current value of a counter or gauge series. name may omit
// the namespace prefix. A series that was never touched reads as zero.
func (m *Metrics) Value(name string, labels map[string]string) (float64, error) {
	families, err := m.GetGatherer().Gather()
	if err != nil {
		return 0, err
	}
	for _, f := range families {
		if f.GetName() != name && !strings.HasSuffix(f.GetName(), "_"+name) {
			continue
		}
		for _, series := range f.GetMetric() {
			pairs := series.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			match := true
			for _, p := range pairs {
				if labels[p.GetName()] != p.GetValue() {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			if c := series.GetCounter(); c != nil {
				return c.GetValue(), nil
			}
			return series.GetGauge().GetValue(), nil
		}
	}
	return 0, nil
}
