package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "mindswap"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	StaleDiscarded  *prometheus.CounterVec
	SwapsTotal      *prometheus.CounterVec
	PoolsTracked    prometheus.Gauge
	CoinTypesHeld   prometheus.Gauge
}

// NewMetrics builds the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_total",
			Help:      "Refresh attempts per collection and result.",
		}, []string{"collection", "result"}),
		RefreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of collection fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection"}),
		StaleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_discarded_total",
			Help:      "Fetch results dropped because the scheduler was stopped or restarted.",
		}, []string{"collection"}),
		SwapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "swaps_total",
			Help:      "Swap executions by outcome.",
		}, []string{"status"}),
		PoolsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pools_tracked",
			Help:      "Pools in the installed snapshot.",
		}),
		CoinTypesHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "coin_types_held",
			Help:      "Coin types in the installed balance snapshot.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RefreshTotal,
			m.RefreshDuration,
			m.StaleDiscarded,
			m.SwapsTotal,
			m.PoolsTracked,
			m.CoinTypesHeld,
		)
	}
	return m
}
