package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/http/respond"
	"github.com/saadkhan2003/masjid-ledger/internal/offline"
)

type Relay interface {
	Enqueue(ctx context.Context, op offline.Operation) (offline.Operation, bool, error)
	Replay(ctx context.Context) (*offline.ReplayResult, error)
	SetOnline(online bool)
	Status() (offline.Status, error)
}

type Handler struct {
	relay Relay
}

func NewHandler(relay Relay) *Handler {
	return &Handler{relay: relay}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/operations", h.enqueue)
	r.Post("/replay", h.replay)
	r.Get("/status", h.status)
	r.Put("/online", h.setOnline)
}

type operationRequest struct {
	ID    uuid.UUID       `json:"id"`
	Type  offline.Kind    `json:"type"`
	Table offline.Table   `json:"table"`
	Data  json.RawMessage `json:"data"`
}

type operationResponse struct {
	ID       uuid.UUID `json:"id"`
	Queued   bool      `json:"queued"`
	QueuedAt time.Time `json:"queued_at"`
}

// enqueue answers 202 for a newly queued operation and 200 for one already known.
func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	op, stored, err := h.relay.Enqueue(r.Context(), offline.Operation{
		ID:    req.ID,
		Kind:  req.Type,
		Table: req.Table,
		Data:  req.Data,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	status := http.StatusOK
	if stored {
		status = http.StatusAccepted
	}

	respond.JSON(w, status, operationResponse{ID: op.ID, Queued: stored, QueuedAt: op.QueuedAt})
}

type replayResponse struct {
	Applied int      `json:"applied"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

func toReplayResponse(res *offline.ReplayResult) *replayResponse {
	if res == nil {
		return nil
	}

	out := &replayResponse{
		Applied: res.Applied,
		Failed:  res.Failed,
		Skipped: res.Skipped,
		Errors:  make([]string, 0, len(res.Errors)),
	}

	for _, err := range res.Errors {
		out.Errors = append(out.Errors, err.Error())
	}

	return out
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request) {
	res, err := h.relay.Replay(r.Context())
	if res == nil {
		respond.Error(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Failed > 0 {
		status = http.StatusMultiStatus
	}

	respond.JSON(w, status, toReplayResponse(res))
}

type statusResponse struct {
	Online     bool            `json:"online"`
	Queued     int             `json:"queued"`
	Replaying  bool            `json:"replaying"`
	LastReplay *time.Time      `json:"last_replay,omitempty"`
	LastResult *replayResponse `json:"last_result,omitempty"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.relay.Status()
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, statusResponse{
		Online:     st.Online,
		Queued:     st.Queued,
		Replaying:  st.Replaying,
		LastReplay: st.LastReplay,
		LastResult: toReplayResponse(st.LastResult),
	})
}

type onlineRequest struct {
	Online bool `json:"online"`
}

func (h *Handler) setOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.relay.SetOnline(req.Online)

	w.WriteHeader(http.StatusNoContent)
}
