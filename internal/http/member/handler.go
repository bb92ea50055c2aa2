package member

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/http/dto"
	"github.com/saadkhan2003/masjid-ledger/internal/http/respond"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
	"github.com/saadkhan2003/masjid-ledger/internal/payment"
)

type Service interface {
	Create(ctx context.Context, params member.CreateParams) (*member.Member, error)
	Get(ctx context.Context, id uuid.UUID) (*member.Member, error)
	List(ctx context.Context, filter member.ListFilter) ([]*member.Member, error)
	Search(ctx context.Context, query string) ([]*member.Member, error)
	Update(ctx context.Context, id uuid.UUID, params member.UpdateParams) (*member.Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Ledger interface {
	GenerateHistoricalDebts(ctx context.Context, memberID uuid.UUID) (*ledger.GenerationResult, error)
	UpdateMemberTotalDebt(ctx context.Context, memberID uuid.UUID) (int64, error)
	ListDebts(ctx context.Context, filter ledger.DebtFilter) ([]*ledger.Debt, error)
}

type Payments interface {
	List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
}

type Handler struct {
	svc         Service
	ledger      Ledger
	payments    Payments
	defaultDues int64
}

func NewHandler(svc Service, l Ledger, payments Payments, defaultDues int64) *Handler {
	return &Handler{
		svc:         svc,
		ledger:      l,
		payments:    payments,
		defaultDues: defaultDues,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/debts", h.debts)
	r.Get("/{id}/payments", h.memberPayments)
	r.Post("/{id}/backfill", h.backfill)
	r.Post("/{id}/recalculate", h.recalculate)
}

type createMemberRequest struct {
	Name        string        `json:"name"`
	Phone       *string       `json:"phone,omitempty"`
	Address     *string       `json:"address,omitempty"`
	Status      member.Status `json:"status,omitempty"`
	JoinDate    *dto.Date     `json:"join_date,omitempty"`
	MonthlyDues *int64        `json:"monthly_dues,omitempty"`
}

type createMemberResponse struct {
	Member        dto.Member      `json:"member"`
	Backfill      *dto.Generation `json:"backfill,omitempty"`
	BackfillError string          `json:"backfill_error,omitempty"`
}

// create registers a member and raises their debts from the join month onwards.
// A failed backfill still answers 201: the member exists and the backfill can be re-run.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := member.CreateParams{
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     req.Address,
		Status:      req.Status,
		MonthlyDues: h.defaultDues,
	}

	if req.JoinDate != nil {
		params.JoinDate = req.JoinDate.Time
	}

	if req.MonthlyDues != nil {
		params.MonthlyDues = *req.MonthlyDues
	}

	m, err := h.svc.Create(r.Context(), params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := createMemberResponse{}

	gen, err := h.ledger.GenerateHistoricalDebts(r.Context(), m.ID)
	resp.Backfill = dto.FromGeneration(gen)

	if err != nil {
		slog.Warn("historical backfill failed for new member", "member_id", m.ID, "error", err)
		resp.BackfillError = err.Error()
	}

	// Reload so the response carries the total the backfill produced.
	if fresh, err := h.svc.Get(r.Context(), m.ID); err == nil {
		m = fresh
	}

	resp.Member = dto.FromMember(m)

	respond.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := member.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = new(member.Status(s))
	}

	var (
		members []*member.Member
		err     error
	)

	if q := r.URL.Query().Get("q"); q != "" && filter.Status == nil {
		members, err = h.svc.Search(r.Context(), q)
	} else {
		filter.Query = q
		members, err = h.svc.List(r.Context(), filter)
	}

	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromMembers(members))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	m, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromMember(m))
}

type updateMemberRequest struct {
	Name        *string        `json:"name,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	Address     *string        `json:"address,omitempty"`
	Status      *member.Status `json:"status,omitempty"`
	MonthlyDues *int64         `json:"monthly_dues,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := h.svc.Update(r.Context(), id, member.UpdateParams{
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     req.Address,
		Status:      req.Status,
		MonthlyDues: req.MonthlyDues,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromMember(m))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) debts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	filter := ledger.DebtFilter{MemberID: &id}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Statuses = []ledger.Status{ledger.Status(s)}
	}

	debts, err := h.ledger.ListDebts(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromDebts(debts))
}

func (h *Handler) memberPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	payments, err := h.payments.List(r.Context(), payment.ListFilter{MemberID: &id})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.FromPayments(payments))
}

func (h *Handler) backfill(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	gen, err := h.ledger.GenerateHistoricalDebts(r.Context(), id)
	if err != nil && (gen == nil || errors.Is(err, member.ErrNotFound)) {
		respond.Error(w, r, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}

	respond.JSON(w, status, dto.FromGeneration(gen))
}

type totalDebtResponse struct {
	MemberID  uuid.UUID `json:"member_id"`
	TotalDebt int64     `json:"total_debt"`
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	total, err := h.ledger.UpdateMemberTotalDebt(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, totalDebtResponse{MemberID: id, TotalDebt: total})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}

	return id, true
}
