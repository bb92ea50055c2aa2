package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	ledgerhttp "github.com/saadkhan2003/masjid-ledger/internal/http"
	"github.com/saadkhan2003/masjid-ledger/internal/http/debt"
	"github.com/saadkhan2003/masjid-ledger/internal/http/importcsv"
	"github.com/saadkhan2003/masjid-ledger/internal/http/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/http/member"
	"github.com/saadkhan2003/masjid-ledger/internal/http/offline"
	"github.com/saadkhan2003/masjid-ledger/internal/http/payment"
	"github.com/saadkhan2003/masjid-ledger/internal/http/report"
	"github.com/saadkhan2003/masjid-ledger/internal/metrics"
)

func newRouter() http.Handler {
	reg := prometheus.NewRegistry()
	metrics.NewLedger(reg).MarkedOverdue(2)

	return ledgerhttp.New(ledgerhttp.Handlers{
		Members:  member.NewHandler(nil, nil, nil, 0),
		Payments: payment.NewHandler(nil),
		Debts:    debt.NewHandler(nil),
		Ledger:   ledger.NewHandler(nil, nil),
		Reports:  report.NewHandler(nil, clock.Real{}),
		Import:   importcsv.NewHandler(nil, nil, nil),
		Sync:     offline.NewHandler(nil),
	}, ledgerhttp.Options{
		AllowedOrigins: []string{"https://committee.example"},
		Gatherer:       reg,
	})
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "masjid_ledger_debts_marked_overdue_total 2")
}

func TestRouter_RejectsNonJSONBodies(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/", strings.NewReader("amount=5"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/members/", nil)
	req.Header.Set("Origin", "https://committee.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, req)

	assert.Equal(t, "https://committee.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
