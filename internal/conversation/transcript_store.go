package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
)

// TranscriptEntry is one persisted chat line.
type TranscriptEntry struct {
	ID         uuid.UUID
	CustomerID string
	Role       string
	Content    string
	Phase      Phase
	MessageID  string
	CreatedAt  time.Time
}

// TranscriptRecorder persists conversation lines for later review.
type TranscriptRecorder interface {
	Record(ctx context.Context, entries ...TranscriptEntry) error
}

// TranscriptStore writes transcripts to conversation_messages.
type TranscriptStore struct {
	db       *sql.DB
	excluded map[string]struct{}
}

// NewTranscriptStore returns nil when db is nil so callers can skip persistence.
// Customers whose number is in excludePhones (test handsets) are never stored.
func NewTranscriptStore(db *sql.DB, excludePhones ...string) *TranscriptStore {
	if db == nil {
		return nil
	}
	excluded := make(map[string]struct{}, len(excludePhones))
	for _, p := range excludePhones {
		if d := nailit.NormalizePhone(p); d != "" {
			excluded[d] = struct{}{}
		}
	}
	return &TranscriptStore{db: db, excluded: excluded}
}

func (s *TranscriptStore) skip(customerID string) bool {
	_, ok := s.excluded[nailit.NormalizePhone(customerID)]
	return ok
}

// Record inserts entries in one transaction.
func (s *TranscriptStore) Record(ctx context.Context, entries ...TranscriptEntry) error {
	if s == nil || len(entries) == 0 || s.skip(entries[0].CustomerID) {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin transcript tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_messages (id, customer_id, role, content, phase, provider_message_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.CustomerID, e.Role, e.Content, string(e.Phase), e.MessageID, e.CreatedAt); err != nil {
			return fmt.Errorf("conversation: insert transcript: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit transcript: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for a customer, oldest first.
func (s *TranscriptStore) Recent(ctx context.Context, customerID string, limit int) ([]TranscriptEntry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, role, content, phase, provider_message_id, created_at
		FROM (
			SELECT * FROM conversation_messages
			WHERE customer_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: query transcript: %w", err)
	}
	defer rows.Close()

	var out []TranscriptEntry
	for rows.Next() {
		var (
			e     TranscriptEntry
			phase string
		)
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Role, &e.Content, &phase, &e.MessageID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan transcript: %w", err)
		}
		e.Phase = Phase(phase)
		out = append(out, e)
	}
	return out, rows.Err()
}
