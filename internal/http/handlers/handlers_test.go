package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
)

type stubTranscripts struct {
	entries   []conversation.TranscriptEntry
	err       error
	lastLimit int
}

func (s *stubTranscripts) Recent(_ context.Context, _ string, limit int) ([]conversation.TranscriptEntry, error) {
	s.lastLimit = limit
	return s.entries, s.err
}

func transcriptRouter(h *TranscriptHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/conversations/{customerID}/transcript", h.GetTranscript)
	return r
}

func TestTranscriptHandler(t *testing.T) {
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	store := &stubTranscripts{entries: []conversation.TranscriptEntry{
		{ID: uuid.New(), CustomerID: "c1", Role: conversation.ChatRoleUser, Content: "hi", Phase: conversation.PhaseGreeting, CreatedAt: at},
		{ID: uuid.New(), CustomerID: "c1", Role: conversation.ChatRoleAssistant, Content: "Welcome!", Phase: conversation.PhaseGreeting, CreatedAt: at},
	}}
	router := transcriptRouter(NewTranscriptHandler(store, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/c1/transcript?limit=900", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, store.lastLimit)

	var resp TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "c1", resp.CustomerID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Welcome!", resp.Messages[1].Content)
	assert.Equal(t, "2025-03-10T10:00:00Z", resp.Messages[0].Timestamp)
}

func TestTranscriptHandler_Errors(t *testing.T) {
	router := transcriptRouter(NewTranscriptHandler(&stubTranscripts{err: errors.New("db down")}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/c1/transcript?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/c1/transcript", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h.Register("redis", func(context.Context) error { return nil }).
		Register("postgres", func(context.Context) error { return errors.New("connection refused") })

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","redis":"ok","postgres":"connection refused"}`, rec.Body.String())
}
