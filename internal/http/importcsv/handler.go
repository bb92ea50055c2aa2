package importcsv

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/http/dto"
	"github.com/saadkhan2003/masjid-ledger/internal/http/respond"
	"github.com/saadkhan2003/masjid-ledger/internal/importer"
	"github.com/saadkhan2003/masjid-ledger/internal/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/member"
)

type Importer interface {
	Members(r io.Reader) (*importer.Result, error)
}

type Members interface {
	Create(ctx context.Context, params member.CreateParams) (*member.Member, error)
}

type Ledger interface {
	GenerateHistoricalDebts(ctx context.Context, memberID uuid.UUID) (*ledger.GenerationResult, error)
}

type Handler struct {
	importer Importer
	members  Members
	ledger   Ledger
}

func NewHandler(imp Importer, members Members, l Ledger) *Handler {
	return &Handler{
		importer: imp,
		members:  members,
		ledger:   l,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/members", h.importMembers)
}

type rowFailure struct {
	Line  int    `json:"line,omitempty"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

type importResponse struct {
	Charset       string       `json:"charset"`
	Imported      int          `json:"imported"`
	Members       []dto.Member `json:"members"`
	Failed        []rowFailure `json:"failed"`
	BackfillFails []rowFailure `json:"backfill_failed,omitempty"`
}

// importMembers creates every readable row of an uploaded roster and backfills each new
// member's dues. Rows that fail do not stop the rest.
func (h *Handler) importMembers(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := h.importer.Members(file)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := importResponse{
		Charset: res.Charset,
		Members: []dto.Member{},
		Failed:  []rowFailure{},
	}

	for _, rej := range res.Rejected {
		resp.Failed = append(resp.Failed, rowFailure{Line: rej.Line, Error: rej.Err.Error()})
	}

	for _, params := range res.Members {
		m, err := h.members.Create(r.Context(), params)
		if err != nil {
			resp.Failed = append(resp.Failed, rowFailure{Name: params.Name, Error: err.Error()})
			continue
		}

		if _, err := h.ledger.GenerateHistoricalDebts(r.Context(), m.ID); err != nil {
			slog.Warn("historical backfill failed for imported member", "member_id", m.ID, "error", err)
			resp.BackfillFails = append(resp.BackfillFails, rowFailure{Name: m.Name, Error: err.Error()})
		}

		resp.Members = append(resp.Members, dto.FromMember(m))
	}

	resp.Imported = len(resp.Members)

	status := http.StatusCreated
	if resp.Imported == 0 && len(resp.Failed) > 0 {
		status = http.StatusUnprocessableEntity
	}

	respond.JSON(w, status, resp)
}
