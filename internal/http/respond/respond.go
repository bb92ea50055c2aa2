// Package respond writes JSON bodies and maps domain errors to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/saadkhan2003/masjid-ledger/internal/importer"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/offline"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
	"github.com/saadkhan2003/masjid-ledger/internal/scheduler"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Status returns the HTTP status for err. Unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, member.ErrNotFound),
		errors.Is(err, ledger.ErrDebtNotFound),
		errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, member.ErrInvalid),
		errors.Is(err, ledger.ErrInvalidDebt),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalid),
		errors.Is(err, offline.ErrInvalidOperation),
		errors.Is(err, importer.ErrNoHeader):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicateDebt),
		errors.Is(err, offline.ErrReplayInProgress),
		errors.Is(err, scheduler.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, offline.ErrOffline):
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

// Error writes err with the status from Status. Internal errors are logged and their
// text is not sent to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}
