package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

type transcriptReader interface {
	Recent(ctx context.Context, customerID string, limit int) ([]conversation.TranscriptEntry, error)
}

// TranscriptHandler serves stored conversation lines for operators.
type TranscriptHandler struct {
	store  transcriptReader
	logger *logging.Logger
}

func NewTranscriptHandler(store transcriptReader, logger *logging.Logger) *TranscriptHandler {
	if store == nil {
		panic("handlers: transcript store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TranscriptHandler{store: store, logger: logger}
}

// MessageResponse is one transcript line.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Phase     string `json:"phase,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// TranscriptResponse is the body of GET /conversations/{customerID}/transcript.
type TranscriptResponse struct {
	CustomerID string            `json:"customer_id"`
	Messages   []MessageResponse `json:"messages"`
}

// GetTranscript handles GET /conversations/{customerID}/transcript?limit=N.
func (h *TranscriptHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customer id required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	entries, err := h.store.Recent(r.Context(), customerID, limit)
	if err != nil {
		h.logger.Error("failed to load transcript", "error", err, "customer_id", customerID)
		writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	resp := TranscriptResponse{CustomerID: customerID, Messages: make([]MessageResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        e.ID.String(),
			Role:      e.Role,
			Content:   e.Content,
			Phase:     string(e.Phase),
			MessageID: e.MessageID,
			Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
