package importer

import (
	"strings"

	"github.com/saadkhan2003/masjid-ledger/internal/money"
)

// parseAmount reads dues into paisa. With decimalComma set, "1.234,50" means 1234.50;
// otherwise "1,234.50" does.
func parseAmount(s string, decimalComma bool) (int64, error) {
	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	return money.Parse(s)
}
