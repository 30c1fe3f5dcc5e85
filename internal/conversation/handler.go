package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// Enqueuer queues inbound turns.
type Enqueuer interface {
	EnqueueMessage(ctx context.Context, in Inbound, opts ...PublishOption) (string, error)
}

// SessionAdmin inspects and clears conversation sessions.
type SessionAdmin interface {
	State(ctx context.Context, customerID string) (*State, error)
	Reset(ctx context.Context, customerID string) error
}

// Handler exposes the conversation HTTP API.
type Handler struct {
	enqueuer Enqueuer
	jobs     JobRecorder
	sessions SessionAdmin
	logger   *logging.Logger
}

// NewHandler creates a conversation handler. jobs and sessions may be nil,
// which disables the matching endpoints.
func NewHandler(enqueuer Enqueuer, jobs JobRecorder, sessions SessionAdmin, logger *logging.Logger) *Handler {
	if enqueuer == nil {
		panic("conversation: enqueuer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{enqueuer: enqueuer, jobs: jobs, sessions: sessions, logger: logger}
}

type messageRequest struct {
	CustomerID string `json:"customer_id"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	Text       string `json:"text"`
}

// Message handles POST /conversations/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "customer_id and text are required", http.StatusBadRequest)
		return
	}

	jobID, err := h.enqueuer.EnqueueMessage(r.Context(), Inbound{
		CustomerID: req.CustomerID,
		Phone:      req.Phone,
		Name:       req.Name,
		Text:       req.Text,
		Channel:    "api",
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to enqueue message", "error", err, "customer_id", req.CustomerID)
		http.Error(w, "Failed to enqueue message", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// JobStatus handles GET /conversations/jobs/{jobID}.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "job tracking disabled", http.StatusNotImplemented)
		return
	}
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, ErrJobNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load job", "error", err)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// State handles GET /conversations/{customerID}/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		http.Error(w, "session inspection disabled", http.StatusNotImplemented)
		return
	}
	customerID := chi.URLParam(r, "customerID")
	st, err := h.sessions.State(r.Context(), customerID)
	if err != nil {
		h.logger.Error("failed to load state", "error", err, "customer_id", customerID)
		http.Error(w, "Failed to load state", http.StatusInternalServerError)
		return
	}
	if st == nil {
		http.Error(w, "no active conversation", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

// Reset handles DELETE /conversations/{customerID}.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		http.Error(w, "session reset disabled", http.StatusNotImplemented)
		return
	}
	customerID := chi.URLParam(r, "customerID")
	if err := h.sessions.Reset(r.Context(), customerID); err != nil {
		h.logger.Error("failed to reset conversation", "error", err, "customer_id", customerID)
		http.Error(w, "Failed to reset conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
