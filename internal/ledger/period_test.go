package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
)

func TestPeriod_DueDate(t *testing.T) {
	tests := []struct {
		name string
		p    ledger.Period
		want time.Time
	}{
		{"MidYear", ledger.Period{Year: 2024, Month: time.April}, date(2024, 5, 1)},
		{"December", ledger.Period{Year: 2024, Month: time.December}, date(2025, 1, 1)},
		{"LeapFebruary", ledger.Period{Year: 2024, Month: time.February}, date(2024, 3, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.DueDate())
		})
	}
}

func TestPeriod_Description(t *testing.T) {
	assert.Equal(t, "Monthly dues for January 2024", ledger.Period{Year: 2024, Month: time.January}.Description())
}

func TestPeriods(t *testing.T) {
	got := ledger.Periods(date(2023, 11, 30), date(2024, 2, 1))

	assert.Equal(t, []ledger.Period{
		{Year: 2023, Month: time.November},
		{Year: 2023, Month: time.December},
		{Year: 2024, Month: time.January},
		{Year: 2024, Month: time.February},
	}, got)

	assert.Len(t, ledger.Periods(date(2024, 4, 15), date(2024, 4, 1)), 1)
	assert.Empty(t, ledger.Periods(date(2024, 5, 1), date(2024, 4, 30)))
}
