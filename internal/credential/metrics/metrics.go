package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for issuance, verification and the ledger.
// All methods are safe on a nil receiver.
type Metrics struct {
	IssuanceTotal      *prometheus.CounterVec
	VerificationsTotal *prometheus.CounterVec
	IssueDuration      prometheus.Histogram
	VerifyDuration     prometheus.Histogram

	LedgerOps         *prometheus.HistogramVec
	LedgerProbes      *prometheus.CounterVec
	LedgerBreakerOpen prometheus.Gauge

	TokenCollisions prometheus.Counter
	OrphansDetected prometheus.Counter
	SweepDuration   prometheus.Histogram
}

// New registers the credential collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssuanceTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "identix_issuance_total",
			Help: "Issuance state transitions by state",
		}, []string{"state"}),
		VerificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "identix_verifications_total",
			Help: "Verifications by outcome",
		}, []string{"outcome"}),
		IssueDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "identix_issue_duration_seconds",
			Help:    "End-to-end issuance latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		VerifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "identix_verify_duration_seconds",
			Help:    "End-to-end verification latency",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "identix_ledger_op_duration_seconds",
			Help:    "Ledger backend call latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		LedgerProbes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "identix_ledger_probes_total",
			Help: "Ledger read probes by result (match, miss, absent, error, short_circuit)",
		}, []string{"result"}),
		LedgerBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "identix_ledger_breaker_open",
			Help: "1 while the ledger read circuit is open",
		}),
		TokenCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "identix_token_collisions_total",
			Help: "Generated tokens rejected as duplicates",
		}),
		OrphansDetected: f.NewCounter(prometheus.CounterOpts{
			Name: "identix_ledger_orphans_detected_total",
			Help: "Ledger entries found without metadata by the reconciliation sweep",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "identix_reconcile_sweep_duration_seconds",
			Help:    "Duration of reconciliation sweeps",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		}),
	}
}

func (m *Metrics) IncIssuance(state string) {
	if m == nil {
		return
	}
	m.IssuanceTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncVerification(outcome string) {
	if m == nil {
		return
	}
	m.VerificationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIssue(d time.Duration) {
	if m == nil {
		return
	}
	m.IssueDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveVerify(d time.Duration) {
	if m == nil {
		return
	}
	m.VerifyDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveLedgerOp(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.LedgerOps.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) IncLedgerProbe(result string) {
	if m == nil {
		return
	}
	m.LedgerProbes.WithLabelValues(result).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.LedgerBreakerOpen.Set(1)
		return
	}
	m.LedgerBreakerOpen.Set(0)
}

func (m *Metrics) IncTokenCollision() {
	if m == nil {
		return
	}
	m.TokenCollisions.Inc()
}

func (m *Metrics) AddOrphans(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrphansDetected.Add(float64(n))
}

func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}
