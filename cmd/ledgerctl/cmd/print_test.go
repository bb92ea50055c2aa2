package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/offline"
)

func TestPrintRunReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.MustParse("3f0c7a9e-8d1b-4a53-9b8e-4f2d1c6b7a10")

	var buf bytes.Buffer
	printRunReport(&buf, &ledger.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Generation: &ledger.GenerationResult{
			Created:  3,
			Existing: 1,
			Failures: []ledger.Failure{{MemberID: id, Err: errors.New("boom")}},
		},
		MarkedOverdue: 2,
		Recalculated:  4,
	})

	out := buf.String()
	assert.Contains(t, out, "created: 3, existing: 1, skipped: 0, failed: 1")
	assert.Contains(t, out, "member "+id.String()+": boom")
	assert.Contains(t, out, "marked overdue: 2")
	assert.Contains(t, out, "recalculated: 4, failed: 0")
	assert.Contains(t, out, "took: 1.5s")
}

func TestPrintRunReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	printRunReport(&buf, nil)
	printGeneration(&buf, nil)

	assert.Empty(t, buf.String())
}

func TestPrintReplay(t *testing.T) {
	var buf bytes.Buffer
	printReplay(&buf, offline.Status{Queued: 4})
	assert.Equal(t, "queued: 4, nothing replayed\n", buf.String())

	buf.Reset()
	printReplay(&buf, offline.Status{
		Queued:     1,
		LastResult: &offline.ReplayResult{Applied: 2, Failed: 1, Errors: []error{errors.New("applying x: nope")}},
	})
	assert.Equal(t, "applied: 2, failed: 1, skipped: 0, still queued: 1\n  applying x: nope\n", buf.String())
}
