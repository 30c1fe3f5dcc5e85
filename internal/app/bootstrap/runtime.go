package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	// database/sql driver for the transcript store
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/http/handlers"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgres opens the pgx pool used by the ledger, catalog and dedupe
// stores. It returns nil, nil when DATABASE_URL is unset.
func BuildPostgres(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse database url: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}

// BuildSQLDB opens the database/sql handle used by the transcript store.
func BuildSQLDB(cfg *appconfig.Config) (*sql.DB, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open sql db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// BuildTranscriptStore wires optional transcript persistence with exclusions.
// It returns nil when no database is configured.
func BuildTranscriptStore(sqlDB *sql.DB, cfg *appconfig.Config, logger *logging.Logger) *conversation.TranscriptStore {
	if cfg == nil || sqlDB == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	excludePhones := parseConversationExclusions(cfg.TranscriptExcludePhones)
	if len(excludePhones) > 0 {
		logger.Info("transcript persistence enabled with exclusions", "excluded_count", len(excludePhones))
	} else {
		logger.Info("transcript persistence enabled")
	}
	return conversation.NewTranscriptStore(sqlDB, excludePhones...)
}

func parseConversationExclusions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var excludePhones []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			excludePhones = append(excludePhones, trimmed)
		}
	}
	return excludePhones
}

// Infra bundles the shared connections a process opens at startup.
type Infra struct {
	Redis *redis.Client
	Pool  *pgxpool.Pool
	SQLDB *sql.DB
}

// BuildInfra opens Redis and Postgres when configured. Redis failures are
// tolerated; a configured but unreachable database is an error.
func BuildInfra(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Infra, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	infra := &Infra{Redis: BuildRedisClient(ctx, cfg, logger, true)}

	pool, err := BuildPostgres(ctx, cfg, logger)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.Pool = pool

	sqlDB, err := BuildSQLDB(cfg)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.SQLDB = sqlDB
	return infra, nil
}

// Close releases every open connection.
func (i *Infra) Close() {
	if i == nil {
		return
	}
	if i.SQLDB != nil {
		_ = i.SQLDB.Close()
	}
	if i.Pool != nil {
		i.Pool.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
}

// Dedupe returns the Postgres processed-events store, or an in-process set
// when no database is configured.
func (i *Infra) Dedupe() events.Dedupe {
	if i != nil && i.Pool != nil {
		return events.NewProcessedStore(i.Pool)
	}
	return events.NewMemoryDedupe()
}

// HealthChecks registers a ping check per open connection.
func (i *Infra) HealthChecks(h *handlers.HealthHandler) *handlers.HealthHandler {
	if i == nil || h == nil {
		return h
	}
	if i.Redis != nil {
		h.Register("redis", func(ctx context.Context) error { return i.Redis.Ping(ctx).Err() })
	}
	if i.Pool != nil {
		h.Register("postgres", i.Pool.Ping)
	}
	return h
}
