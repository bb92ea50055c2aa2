package ledger

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saadkhan2003/masjid-ledger/internal/http/dto"
	"github.com/saadkhan2003/masjid-ledger/internal/http/respond"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
)

type Service interface {
	GenerateMonthlyDebts(ctx context.Context) (*ledger.GenerationResult, error)
	UpdateOverdueDebts(ctx context.Context) (int, error)
	InitializeDebtSystem(ctx context.Context) (*ledger.GenerationResult, error)
}

type Scheduler interface {
	RunOnce(ctx context.Context) (*ledger.RunReport, error)
	Last() (*ledger.RunReport, error)
}

// Handler exposes the ledger's batch jobs so an operator can trigger them by hand.
type Handler struct {
	svc       Service
	scheduler Scheduler
}

func NewHandler(svc Service, s Scheduler) *Handler {
	return &Handler{svc: svc, scheduler: s}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/generate", h.generate)
	r.Post("/overdue", h.overdue)
	r.Post("/initialize", h.initialize)
	r.Post("/run", h.run)
	r.Get("/runs/last", h.lastRun)
}

type jobResponse struct {
	Generation    *dto.Generation `json:"generation,omitempty"`
	MarkedOverdue *int            `json:"marked_overdue,omitempty"`
	Error         string          `json:"error,omitempty"`
}

type runResponse struct {
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Generation    *dto.Generation `json:"generation,omitempty"`
	MarkedOverdue int             `json:"marked_overdue"`
	Recalculated  int             `json:"recalculated"`
	RecalcFailed  int             `json:"recalc_failed"`
	Error         string          `json:"error,omitempty"`
}

// writePartial answers 207 when a batch job finished with per-member failures.
func writePartial(w http.ResponseWriter, v any, err error) {
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}

	respond.JSON(w, status, v)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GenerateMonthlyDebts(r.Context())
	if res == nil {
		respond.Error(w, r, err)
		return
	}

	writePartial(w, jobResponse{Generation: dto.FromGeneration(res), Error: errText(err)}, err)
}

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UpdateOverdueDebts(r.Context())
	if err != nil && n == 0 {
		respond.Error(w, r, err)
		return
	}

	writePartial(w, jobResponse{MarkedOverdue: &n, Error: errText(err)}, err)
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.InitializeDebtSystem(r.Context())
	if res == nil {
		respond.Error(w, r, err)
		return
	}

	writePartial(w, jobResponse{Generation: dto.FromGeneration(res), Error: errText(err)}, err)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	report, err := h.scheduler.RunOnce(r.Context())
	if report == nil {
		respond.Error(w, r, err)
		return
	}

	writePartial(w, toRunResponse(report, err), err)
}

func (h *Handler) lastRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.scheduler.Last()
	if report == nil {
		http.Error(w, "no run yet", http.StatusNotFound)
		return
	}

	respond.JSON(w, http.StatusOK, toRunResponse(report, err))
}

func toRunResponse(report *ledger.RunReport, err error) runResponse {
	return runResponse{
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Generation:    dto.FromGeneration(report.Generation),
		MarkedOverdue: report.MarkedOverdue,
		Recalculated:  report.Recalculated,
		RecalcFailed:  report.RecalcFailed,
		Error:         errText(err),
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
