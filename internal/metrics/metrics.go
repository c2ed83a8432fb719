// Package metrics exposes the engine's Prometheus gauges/counters.
// Grounded on health_check.go's process-health surface (the teacher already
// exposes a liveness endpoint); this adds the actual instrumentation
// ChoSanghyuk-blackholedex's client_golang dependency implies a production
// Go trading service should carry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric the engine exports, constructed once at
// startup and passed by reference to every package that records a metric.
type Registry struct {
	BookChecksTotal       *prometheus.CounterVec
	EntriesTotal          *prometheus.CounterVec
	ExitsTotal            *prometheus.CounterVec
	HedgesTotal           *prometheus.CounterVec
	CooldownHitsTotal     prometheus.Counter
	OpenPositionsGauge    prometheus.Gauge
	EffectiveBankrollGauge prometheus.Gauge
	PortfolioHealthGauge  *prometheus.GaugeVec
	CycleDurationSeconds  prometheus.Histogram
}

// New registers every metric against r (pass prometheus.NewRegistry() for
// tests, prometheus.DefaultRegisterer in production).
func New(r prometheus.Registerer) *Registry {
	reg := &Registry{
		BookChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predatorbook_book_checks_total",
			Help: "Book resolver attempts by health classification.",
		}, []string{"health"}),
		EntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predatorbook_entries_total",
			Help: "Entry attempts by outcome.",
		}, []string{"outcome"}),
		ExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predatorbook_exits_total",
			Help: "Exit attempts by reason.",
		}, []string{"reason"}),
		HedgesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predatorbook_hedges_total",
			Help: "Hedge placements by outcome.",
		}, []string{"outcome"}),
		CooldownHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predatorbook_cooldown_hits_total",
			Help: "Entries rejected due to an active token cooldown.",
		}),
		OpenPositionsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "predatorbook_open_positions",
			Help: "Current count of non-closed positions.",
		}),
		EffectiveBankrollGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "predatorbook_effective_bankroll_usd",
			Help: "Capital currently available for deployment.",
		}),
		PortfolioHealthGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "predatorbook_portfolio_health",
			Help: "1 if the portfolio is currently in the given health state, else 0.",
		}, []string{"health"}),
		CycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "predatorbook_cycle_duration_seconds",
			Help:    "Control loop cycle wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	r.MustRegister(
		reg.BookChecksTotal,
		reg.EntriesTotal,
		reg.ExitsTotal,
		reg.HedgesTotal,
		reg.CooldownHitsTotal,
		reg.OpenPositionsGauge,
		reg.EffectiveBankrollGauge,
		reg.PortfolioHealthGauge,
		reg.CycleDurationSeconds,
	)
	return reg
}
