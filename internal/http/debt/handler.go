package debt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/http/dto"
	"github.com/saadkhan2003/masjid-ledger/internal/http/respond"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
)

type Service interface {
	CreateDebt(ctx context.Context, params ledger.CreateDebtParams) (*ledger.Debt, error)
	GetDebt(ctx context.Context, id uuid.UUID) (*ledger.Debt, error)
	ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]*ledger.Debt, error)
	UpdateDebtStatus(ctx context.Context, id uuid.UUID, status ledger.Status) (*ledger.Debt, error)
	DeleteDebt(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/status", h.updateStatus)
	r.Delete("/{id}", h.delete)
}

type createDebtRequest struct {
	MemberID    uuid.UUID   `json:"member_id"`
	Amount      int64       `json:"amount"`
	Type        ledger.Type `json:"type"`
	Description string      `json:"description,omitempty"`
	DueDate     dto.Date    `json:"due_date"`
	Month       int         `json:"month,omitempty"`
	Year        int         `json:"year,omitempty"`
}

type debtResponse struct {
	dto.Debt
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.svc.CreateDebt(r.Context(), ledger.CreateDebtParams{
		MemberID:    req.MemberID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		DueDate:     req.DueDate.Time,
		Month:       req.Month,
		Year:        req.Year,
	})

	writeDebt(w, r, http.StatusCreated, d, err)
}

// writeDebt treats a stale member total as a warning: the debt change itself is stored.
func writeDebt(w http.ResponseWriter, r *http.Request, status int, d *ledger.Debt, err error) {
	var recalcErr *ledger.RecalculationError
	if err != nil && !errors.As(err, &recalcErr) {
		respond.Error(w, r, err)
		return
	}

	resp := debtResponse{Debt: dto.FromDebt(d)}
	if err != nil {
		slog.Warn("debt stored but total not refreshed", "debt_id", d.ID, "error", err)
		resp.Warning = err.Error()
	}

	respond.JSON(w, status, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.DebtFilter{}

	if s := q.Get("member_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid member_id", http.StatusBadRequest)
			return
		}

		filter.MemberID = &id
	}

	for _, s := range q["status"] {
		filter.Statuses = append(filter.Statuses, ledger.Status(s))
	}

	if s := q.Get("type"); s != "" {
		filter.Type = new(ledger.Type(s))
	}

	if s := q.Get("year"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			filter.Year = &v
		}
	}

	if s := q.Get("month"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			filter.Month = &v
		}
	}

	debts, err := h.svc.ListDebts(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromDebts(debts))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	d, err := h.svc.GetDebt(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromDebt(d))
}

type updateStatusRequest struct {
	Status ledger.Status `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.svc.UpdateDebtStatus(r.Context(), id, req.Status)

	writeDebt(w, r, http.StatusOK, d, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	err = h.svc.DeleteDebt(r.Context(), id)

	var recalcErr *ledger.RecalculationError
	if err != nil && !errors.As(err, &recalcErr) {
		respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
