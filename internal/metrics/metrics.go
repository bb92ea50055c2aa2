// Package metrics exposes prometheus collectors for ledger and scheduler activity.
// A nil *Ledger or *Scheduler is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "masjid_ledger"

type Ledger struct {
	debtsGenerated *prometheus.CounterVec
	payments       *prometheus.CounterVec
	allocated      prometheus.Counter
	unapplied      prometheus.Counter
	overdue        prometheus.Counter
}

func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		debtsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debts_generated_total",
			Help:      "Monthly debts created by generation runs.",
		}, []string{"source"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_processed_total",
			Help:      "Payments run through allocation, by outcome.",
		}, []string{"outcome"}),
		allocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocated_minor_units_total",
			Help:      "Sum of payment amounts applied to debts.",
		}),
		unapplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unapplied_minor_units_total",
			Help:      "Sum of payment surplus left after all debts were cleared.",
		}),
		overdue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debts_marked_overdue_total",
			Help:      "Debts moved from pending to overdue.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.debtsGenerated, m.payments, m.allocated, m.unapplied, m.overdue)
	}

	return m
}

func (m *Ledger) DebtsGenerated(source string, n int) {
	if m == nil || n <= 0 {
		return
	}

	m.debtsGenerated.WithLabelValues(source).Add(float64(n))
}

func (m *Ledger) PaymentProcessed(outcome string, applied, unapplied int64) {
	if m == nil {
		return
	}

	m.payments.WithLabelValues(outcome).Inc()
	m.allocated.Add(float64(applied))
	m.unapplied.Add(float64(unapplied))
}

func (m *Ledger) MarkedOverdue(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.overdue.Add(float64(n))
}

type Scheduler struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	lastRun  prometheus.Gauge
}

func NewScheduler(reg prometheus.Registerer) *Scheduler {
	m := &Scheduler{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled ledger runs, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a scheduled ledger run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.lastRun)
	}

	return m
}

func (m *Scheduler) ObserveRun(start, end time.Time, err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
	}

	m.runs.WithLabelValues(result).Inc()
	m.duration.Observe(end.Sub(start).Seconds())
	m.lastRun.Set(float64(end.Unix()))
}
