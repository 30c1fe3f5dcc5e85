package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

var stateTracer = otel.Tracer("salon.internal.conversation.state")

// RedisStateStore stores state as JSON with a sliding TTL.
type RedisStateStore struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

var _ StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore creates a Redis-backed store. A non-positive ttl uses 24h.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStateStore{redis: client, ttl: ttl, now: time.Now}
}

func stateKey(customerID string) string {
	return fmt.Sprintf("salon:conversation:state:%s", customerID)
}

// Get implements StateStore.
func (s *RedisStateStore) Get(ctx context.Context, customerID string) (*State, error) {
	ctx, span := stateTracer.Start(ctx, "conversation.state.get")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode state: %w", err)
	}
	return &st, nil
}

// GetOrCreate implements StateStore.
func (s *RedisStateStore) GetOrCreate(ctx context.Context, customerID string) (*State, error) {
	st, err := s.Get(ctx, customerID)
	if err != nil || st != nil {
		return st, err
	}
	return NewState(customerID, s.now()), nil
}

// Save implements StateStore and refreshes the TTL.
func (s *RedisStateStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return nil
	}
	ctx, span := stateTracer.Start(ctx, "conversation.state.save")
	defer span.End()

	state.LastUpdated = s.now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("conversation: encode state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(state.CustomerID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist state: %w", err)
	}
	return nil
}

// Reset implements StateStore.
func (s *RedisStateStore) Reset(ctx context.Context, customerID string) error {
	if err := s.redis.Del(ctx, stateKey(customerID)).Err(); err != nil {
		return fmt.Errorf("conversation: reset state: %w", err)
	}
	return nil
}
