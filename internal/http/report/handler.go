package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	"github.com/saadkhan2003/masjid-ledger/internal/http/dto"
	"github.com/saadkhan2003/masjid-ledger/internal/http/respond"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/money"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
	"github.com/saadkhan2003/masjid-ledger/internal/report"
)

type Service interface {
	Dashboard(ctx context.Context) (*report.DashboardStats, error)
	MembersCSV(ctx context.Context, w io.Writer, filter member.ListFilter) (int, error)
	PaymentsCSV(ctx context.Context, w io.Writer, filter payment.ListFilter) (int, error)
	DebtsCSV(ctx context.Context, w io.Writer, filter ledger.DebtFilter) (int, error)
	SummaryCSV(ctx context.Context, w io.Writer, from, to time.Time) error
}

type Handler struct {
	svc   Service
	clock clock.Clock
}

func NewHandler(svc Service, clk clock.Clock) *Handler {
	return &Handler{svc: svc, clock: clk}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/members.csv", h.membersCSV)
	r.Get("/payments.csv", h.paymentsCSV)
	r.Get("/debts.csv", h.debtsCSV)
	r.Get("/summary.csv", h.summaryCSV)
}

type dashboardResponse struct {
	TotalMembers      int           `json:"total_members"`
	ActiveMembers     int           `json:"active_members"`
	MonthlyCollection int64         `json:"monthly_collection"`
	Outstanding       int64         `json:"outstanding"`
	OutstandingText   string        `json:"outstanding_text"`
	RecentPayments    []dto.Payment `json:"recent_payments"`
	OverdueDebts      []dto.Debt    `json:"overdue_debts"`
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dashboardResponse{
		TotalMembers:      stats.TotalMembers,
		ActiveMembers:     stats.ActiveMembers,
		MonthlyCollection: stats.MonthlyCollection,
		Outstanding:       stats.Outstanding,
		OutstandingText:   money.Display(stats.Outstanding),
		RecentPayments:    dto.FromPayments(stats.RecentPayments),
		OverdueDebts:      dto.FromDebts(stats.OverdueDebts),
	})
}

func (h *Handler) membersCSV(w http.ResponseWriter, r *http.Request) {
	filter := member.ListFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = new(member.Status(s))
	}

	h.writeCSV(w, r, "members", func(buf io.Writer) error {
		_, err := h.svc.MembersCSV(r.Context(), buf, filter)
		return err
	})
}

func (h *Handler) paymentsCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	filter := payment.ListFilter{From: from, To: to}

	if s := r.URL.Query().Get("member_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid member_id", http.StatusBadRequest)
			return
		}

		filter.MemberID = &id
	}

	h.writeCSV(w, r, "payments", func(buf io.Writer) error {
		_, err := h.svc.PaymentsCSV(r.Context(), buf, filter)
		return err
	})
}

func (h *Handler) debtsCSV(w http.ResponseWriter, r *http.Request) {
	filter := ledger.DebtFilter{}
	for _, s := range r.URL.Query()["status"] {
		filter.Statuses = append(filter.Statuses, ledger.Status(s))
	}

	h.writeCSV(w, r, "debts", func(buf io.Writer) error {
		_, err := h.svc.DebtsCSV(r.Context(), buf, filter)
		return err
	})
}

// summaryCSV defaults to the current year when no range is given.
func (h *Handler) summaryCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	now := h.clock.Now()

	if from == nil {
		from = new(time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC))
	}

	if to == nil {
		to = new(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	}

	h.writeCSV(w, r, "summary", func(buf io.Writer) error {
		return h.svc.SummaryCSV(r.Context(), buf, *from, *to)
	})
}

func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (*time.Time, *time.Time, bool) {
	var from, to *time.Time

	for name, dst := range map[string]**time.Time{"from": &from, "to": &to} {
		s := r.URL.Query().Get(name)
		if s == "" {
			continue
		}

		t, err := dto.ParseDate(s)
		if err != nil {
			http.Error(w, "invalid "+name+": "+err.Error(), http.StatusBadRequest)
			return nil, nil, false
		}

		*dst = &t
	}

	return from, to, true
}

// writeCSV renders into a buffer first so a failure can still produce a proper error status.
func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, name string, render func(io.Writer) error) {
	var buf bytes.Buffer

	if err := render(&buf); err != nil {
		respond.Error(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s_report_%s.csv", name, h.clock.Now().Format(time.DateOnly))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write csv", "report", name, "error", err)
	}
}
