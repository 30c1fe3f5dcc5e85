package branch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "salon:branches:snapshot"

// Store persists directory snapshots in Redis so every process shares the last sync.
type Store struct {
	redis *redis.Client
}

// NewStore creates a Redis-backed snapshot store.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("branch: redis client cannot be nil")
	}
	return &Store{redis: redisClient}
}

// Get returns the stored snapshot, or ok=false when none has been saved.
func (s *Store) Get(ctx context.Context) (Snapshot, bool, error) {
	data, err := s.redis.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("branch: get snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("branch: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Set stores the snapshot without expiry.
func (s *Store) Set(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("branch: marshal snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, snapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("branch: set snapshot: %w", err)
	}
	return nil
}

// Refresh loads the stored snapshot into dir, if any.
func (s *Store) Refresh(ctx context.Context, dir *Directory) error {
	snap, ok, err := s.Get(ctx)
	if err != nil || !ok {
		return err
	}
	dir.Load(snap)
	return nil
}
