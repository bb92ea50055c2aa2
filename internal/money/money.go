// Package money converts between minor-unit amounts (paisa) and their decimal text form.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of minor units in one rupee.
const MinorUnits = 100

var hundred = decimal.NewFromInt(MinorUnits)

// Parse reads a decimal amount such as "1,234.50", "Rs 200" or "200" into minor units.
// Thousands separators and a leading currency symbol are ignored.
func Parse(s string) (int64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "Rs")
	clean = strings.TrimPrefix(clean, "PKR")
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimSpace(clean)

	if clean == "" {
		return 0, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}

	return d.Mul(hundred).Round(0).IntPart(), nil
}

// Format renders minor units as a plain decimal string with two places, e.g. 123450 -> "1234.50".
func Format(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// Display renders minor units for people: whole rupees drop the fraction, e.g. "Rs 200".
func Display(amount int64) string {
	d := decimal.New(amount, -2)
	if amount%MinorUnits == 0 {
		return "Rs " + d.StringFixed(0)
	}

	return "Rs " + d.StringFixed(2)
}
