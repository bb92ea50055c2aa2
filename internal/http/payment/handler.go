package payment

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
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

type Service interface {
	Record(ctx context.Context, params payment.CreateParams) (*payment.Receipt, error)
	Get(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
	Update(ctx context.Context, id uuid.UUID, params payment.UpdateParams) (*payment.Receipt, error)
	Delete(ctx context.Context, id uuid.UUID) error
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
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createPaymentRequest struct {
	MemberID      uuid.UUID `json:"member_id"`
	Amount        int64     `json:"amount"`
	PaymentDate   dto.Date  `json:"payment_date"`
	Month         int       `json:"month,omitempty"`
	Year          int       `json:"year,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	ReceiptNumber *string   `json:"receipt_number,omitempty"`
}

type receiptResponse struct {
	Payment    dto.Payment     `json:"payment"`
	Allocation *dto.Allocation `json:"allocation,omitempty"`
	// Warning is set when the payment was stored but the ledger is not fully up to date.
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := h.svc.Record(r.Context(), payment.CreateParams{
		MemberID:      req.MemberID,
		Amount:        req.Amount,
		PaymentDate:   req.PaymentDate.Time,
		Month:         req.Month,
		Year:          req.Year,
		Notes:         req.Notes,
		ReceiptNumber: req.ReceiptNumber,
	})

	writeReceipt(w, r, http.StatusCreated, receipt, err)
}

// writeReceipt answers with ok when allocation went through. A payment that was stored
// but not allocated answers 202; one whose total could not be refreshed answers ok with
// a warning.
func writeReceipt(w http.ResponseWriter, r *http.Request, ok int, receipt *payment.Receipt, err error) {
	var (
		allocErr  *payment.AllocationError
		recalcErr *ledger.RecalculationError
	)

	status := ok
	resp := receiptResponse{}

	switch {
	case err == nil:
	case errors.As(err, &allocErr):
		status = http.StatusAccepted
		resp.Warning = err.Error()
	case errors.As(err, &recalcErr):
		resp.Warning = err.Error()
	default:
		respond.Error(w, r, err)
		return
	}

	if resp.Warning != "" {
		slog.Warn("payment stored with ledger warning", "payment_id", receipt.Payment.ID, "error", err)
	}

	resp.Payment = dto.FromPayment(receipt.Payment)
	resp.Allocation = dto.FromAllocation(receipt.Allocation)

	respond.JSON(w, status, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := payment.ListFilter{}

	if s := q.Get("member_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid member_id", http.StatusBadRequest)
			return
		}

		filter.MemberID = &id
	}

	for name, dst := range map[string]**int{"year": &filter.Year, "month": &filter.Month} {
		if s := q.Get(name); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "invalid "+name, http.StatusBadRequest)
				return
			}

			*dst = &v
		}
	}

	if s := q.Get("from"); s != "" {
		if t, err := dto.ParseDate(s); err == nil {
			filter.From = new(t)
		}
	}

	if s := q.Get("to"); s != "" {
		if t, err := dto.ParseDate(s); err == nil {
			filter.To = new(t)
		}
	}

	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	payments, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromPayments(payments))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromPayment(p))
}

type updatePaymentRequest struct {
	Amount        *int64    `json:"amount,omitempty"`
	PaymentDate   *dto.Date `json:"payment_date,omitempty"`
	Month         *int      `json:"month,omitempty"`
	Year          *int      `json:"year,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	ReceiptNumber *string   `json:"receipt_number,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := payment.UpdateParams{
		Amount:        req.Amount,
		Month:         req.Month,
		Year:          req.Year,
		Notes:         req.Notes,
		ReceiptNumber: req.ReceiptNumber,
	}

	if req.PaymentDate != nil {
		params.PaymentDate = &req.PaymentDate.Time
	}

	receipt, err := h.svc.Update(r.Context(), id, params)

	writeReceipt(w, r, http.StatusOK, receipt, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	err = h.svc.Delete(r.Context(), id)

	var recalcErr *ledger.RecalculationError
	if err != nil && !errors.As(err, &recalcErr) {
		respond.Error(w, r, err)
		return
	}

	if err != nil {
		slog.Warn("payment deleted but total not refreshed", "payment_id", id, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
