// Package metrics provides the Prometheus metrics of the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors, registered on a private registry so several
// instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Evaluation metrics
	Evaluations   *prometheus.CounterVec
	SellSignals   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	OpenHoldings  prometheus.Gauge

	// Execution metrics
	Settlements     *prometheus.CounterVec
	SellFailures    *prometheus.CounterVec
	SkippedHoldings *prometheus.CounterVec
	RealizedPnLUSD  *prometheus.GaugeVec

	// Upstream metrics
	QuoteErrors prometheus.Counter
	PriceErrors prometheus.Counter
	SOLPriceUSD prometheus.Gauge
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sol_tracker"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "evaluations_total",
			Help:      "Total number of holding evaluations",
		}, []string{"bot"}),
		SellSignals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "sell_signals_total",
			Help:      "Total number of sell recommendations by tier kind",
		}, []string{"bot", "kind"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one evaluation cycle over all holdings",
			Buckets:   prometheus.DefBuckets,
		}),
		OpenHoldings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "open_holdings",
			Help:      "Number of holdings evaluated in the last cycle",
		}),

		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "settlements_total",
			Help:      "Total number of settled sells by outcome",
		}, []string{"bot", "outcome"}),
		SellFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "sell_failures_total",
			Help:      "Total number of failed sell attempts",
		}, []string{"bot"}),
		SkippedHoldings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "skipped_holdings_total",
			Help:      "Total number of holdings given up after repeated sell failures",
		}, []string{"bot"}),
		RealizedPnLUSD: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "realized_pnl_usd",
			Help:      "Realized PnL in USD since start",
		}, []string{"bot"}),

		QuoteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "quote_errors_total",
			Help:      "Total number of failed or malformed quotes",
		}),
		PriceErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "price_errors_total",
			Help:      "Total number of cycles skipped for lack of a SOL price",
		}),
		SOLPriceUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "sol_price_usd",
			Help:      "Last SOL price used for valuation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordEvaluation(bot string) {
	m.Evaluations.WithLabelValues(bot).Inc()
}

func (m *Metrics) RecordSellSignal(bot, kind string) {
	m.SellSignals.WithLabelValues(bot, kind).Inc()
}

// RecordSettlement counts a settlement as a win or a loss and adds its
// realized PnL.
func (m *Metrics) RecordSettlement(bot string, realizedUSD float64) {
	outcome := "loss"
	if realizedUSD >= 0 {
		outcome = "win"
	}
	m.Settlements.WithLabelValues(bot, outcome).Inc()
	m.RealizedPnLUSD.WithLabelValues(bot).Add(realizedUSD)
}

func (m *Metrics) RecordSellFailure(bot string) {
	m.SellFailures.WithLabelValues(bot).Inc()
}

func (m *Metrics) RecordSkipped(bot string) {
	m.SkippedHoldings.WithLabelValues(bot).Inc()
}

func (m *Metrics) RecordCycle(seconds float64, holdings int) {
	m.CycleDuration.Observe(seconds)
	m.OpenHoldings.Set(float64(holdings))
}
