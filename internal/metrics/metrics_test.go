package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/saadkhan2003/masjid-ledger/internal/metrics"
)

func TestLedger_NilIsNoop(t *testing.T) {
	var m *metrics.Ledger

	assert.NotPanics(t, func() {
		m.DebtsGenerated("monthly", 3)
		m.PaymentProcessed("allocated", 100, 0)
		m.MarkedOverdue(2)
	})
}

func TestLedger_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLedger(reg)

	m.DebtsGenerated("monthly", 2)
	m.DebtsGenerated("historical", 5)
	m.MarkedOverdue(4)
	m.PaymentProcessed("allocated", 30000, 5000)

	n, err := testutil.GatherAndCount(reg,
		"masjid_ledger_debts_generated_total",
		"masjid_ledger_debts_marked_overdue_total",
	)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestScheduler_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewScheduler(reg)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m.ObserveRun(start, start.Add(time.Second), nil)
	m.ObserveRun(start, start.Add(time.Second), errors.New("boom"))

	n, err := testutil.GatherAndCount(reg, "masjid_ledger_scheduler_runs_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}
