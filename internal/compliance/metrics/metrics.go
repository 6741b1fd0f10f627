package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance engine.
type Metrics struct {
	// Advisory and enforcing decisions by compliance code
	Checks *prometheus.CounterVec

	// Mutations by op and result ("ok", "rejected", "error")
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec

	// Investor counts per category after the last commit
	CategoryCount *prometheus.GaugeVec

	LockSweeps prometheus.Counter
}

// New registers compliance metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secutoken_compliance_checks_total",
			Help: "Total compliance decisions by code",
		}, []string{"code"}),

		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secutoken_mutations_total",
			Help: "Total ledger mutations by operation and result",
		}, []string{"op", "result"}),

		MutationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secutoken_mutation_duration_seconds",
			Help:    "Duration of ledger mutations including registry lookups",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),

		CategoryCount: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "secutoken_investor_category_count",
			Help: "Number of investors with a positive balance per category",
		}, []string{"category"}),

		LockSweeps: f.NewCounter(prometheus.CounterOpts{
			Name: "secutoken_lock_sweeps_total",
			Help: "Total expired lock records physically removed",
		}),
	}
}

// IncCheck records a compliance decision.
func (m *Metrics) IncCheck(code int) {
	if m != nil {
		m.Checks.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

// ObserveMutation records the result and latency of a mutation.
func (m *Metrics) ObserveMutation(op, result string, d time.Duration) {
	if m != nil {
		m.Mutations.WithLabelValues(op, result).Inc()
		m.MutationDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// SetCategoryCounts replaces the category gauges with a committed snapshot.
// Categories absent from the snapshot are reset to zero.
func (m *Metrics) SetCategoryCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.CategoryCount.Reset()
	for cat, n := range counts {
		m.CategoryCount.WithLabelValues(cat).Set(float64(n))
	}
}

// AddSweeps counts swept lock records.
func (m *Metrics) AddSweeps(n int) {
	if m != nil && n > 0 {
		m.LockSweeps.Add(float64(n))
	}
}
