package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dedupe records inbound provider message ids so webhook retries are handled once.
type Dedupe interface {
	// Claim returns true the first time a provider/event id pair is seen.
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	// Release drops a claim so the provider's redelivery is processed.
	Release(ctx context.Context, provider, eventID string) error
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore is the Postgres-backed Dedupe over processed_events.
type ProcessedStore struct {
	db rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{db: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{db: exec}
}

// Seen reports whether the id was already claimed.
func (s *ProcessedStore) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx,
		`SELECT 1 FROM processed_events WHERE provider = $1 AND event_id = $2`,
		provider, eventID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("events: lookup processed: %w", err)
	}
	return true, nil
}

func (s *ProcessedStore) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO processed_events (provider, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		provider, eventID,
	)
	if err != nil {
		return false, fmt.Errorf("events: claim %s/%s: %w", provider, eventID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ProcessedStore) Release(ctx context.Context, provider, eventID string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM processed_events WHERE provider = $1 AND event_id = $2`,
		provider, eventID,
	); err != nil {
		return fmt.Errorf("events: release %s/%s: %w", provider, eventID, err)
	}
	return nil
}

// PurgeBefore removes claims older than cutoff.
func (s *ProcessedStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM processed_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("events: purge processed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MemoryDedupe keeps claims in process memory for local runs.
type MemoryDedupe struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDedupe() *MemoryDedupe {
	return &MemoryDedupe{seen: make(map[string]struct{})}
}

func (m *MemoryDedupe) Claim(_ context.Context, provider, eventID string) (bool, error) {
	key := provider + "/" + eventID
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

func (m *MemoryDedupe) Release(_ context.Context, provider, eventID string) error {
	m.mu.Lock()
	delete(m.seen, provider+"/"+eventID)
	m.mu.Unlock()
	return nil
}
