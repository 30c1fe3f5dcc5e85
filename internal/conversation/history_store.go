package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const maxStoredHistory = 20

// HistoryStore keeps the recent chat turns used as LLM context.
type HistoryStore interface {
	Load(ctx context.Context, customerID string) ([]ChatMessage, error)
	Append(ctx context.Context, customerID string, msgs ...ChatMessage) error
	Clear(ctx context.Context, customerID string) error
}

// RedisHistoryStore keeps a bounded JSON history per customer.
type RedisHistoryStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisHistoryStore creates a Redis-backed history store.
func NewRedisHistoryStore(client *redis.Client, ttl time.Duration) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisHistoryStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("salon.internal.conversation.history"),
	}
}

func historyKey(customerID string) string {
	return fmt.Sprintf("salon:conversation:history:%s", customerID)
}

// Load implements HistoryStore. A missing key yields an empty history.
func (s *RedisHistoryStore) Load(ctx context.Context, customerID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, historyKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}
	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

// Append implements HistoryStore.
func (s *RedisHistoryStore) Append(ctx context.Context, customerID string, msgs ...ChatMessage) error {
	history, err := s.Load(ctx, customerID)
	if err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	history = boundHistory(append(history, msgs...))
	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, historyKey(customerID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

// Clear implements HistoryStore.
func (s *RedisHistoryStore) Clear(ctx context.Context, customerID string) error {
	if err := s.redis.Del(ctx, historyKey(customerID)).Err(); err != nil {
		return fmt.Errorf("conversation: failed to clear history: %w", err)
	}
	return nil
}

// MemoryHistoryStore is the in-process HistoryStore.
type MemoryHistoryStore struct {
	mu      sync.Mutex
	history map[string][]ChatMessage
}

// NewMemoryHistoryStore creates an empty store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{history: make(map[string][]ChatMessage)}
}

// Load implements HistoryStore.
func (m *MemoryHistoryStore) Load(_ context.Context, customerID string) ([]ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatMessage(nil), m.history[customerID]...), nil
}

// Append implements HistoryStore.
func (m *MemoryHistoryStore) Append(_ context.Context, customerID string, msgs ...ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[customerID] = boundHistory(append(m.history[customerID], msgs...))
	return nil
}

// Clear implements HistoryStore.
func (m *MemoryHistoryStore) Clear(_ context.Context, customerID string) error {
	m.mu.Lock()
	delete(m.history, customerID)
	m.mu.Unlock()
	return nil
}

func boundHistory(history []ChatMessage) []ChatMessage {
	if len(history) <= maxStoredHistory {
		return history
	}
	return append([]ChatMessage(nil), history[len(history)-maxStoredHistory:]...)
}
