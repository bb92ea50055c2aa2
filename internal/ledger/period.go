package ledger

import (
	"fmt"
	"time"
)

// Period is a calendar month a monthly debt is raised for.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}

	return Period{Year: p.Year, Month: p.Month + 1}
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}

	return p.Month < o.Month
}

// DueDate is the first day of the following month.
func (p Period) DueDate() time.Time {
	n := p.Next()
	return time.Date(n.Year, n.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Description reads e.g. "Monthly dues for January 2024".
func (p Period) Description() string {
	return fmt.Sprintf("Monthly dues for %s %d", p.Month, p.Year)
}

func (p Period) String() string {
	return fmt.Sprintf("%d-%02d", p.Year, int(p.Month))
}

// Periods lists every month from the month of from through the month of to, inclusive,
// in chronological order. It is empty when from falls after to.
func Periods(from, to time.Time) []Period {
	start, end := PeriodOf(from), PeriodOf(to)

	var out []Period
	for p := start; !end.Before(p); p = p.Next() {
		out = append(out, p)
	}

	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
