package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository persists the synced catalog in Postgres.
type Repository struct {
	db rowQuerier
}

// NewRepository creates a Postgres-backed catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithExec(exec rowQuerier) *Repository {
	if exec == nil {
		panic("catalog: exec required")
	}
	return &Repository{db: exec}
}

// Upsert writes a service, stamping it with syncedAt.
func (r *Repository) Upsert(ctx context.Context, rec ServiceRecord, syncedAt time.Time) error {
	query := `
		INSERT INTO catalog_services (item_id, name, description, price, duration_minutes, location_ids, keywords, categories, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			duration_minutes = EXCLUDED.duration_minutes,
			location_ids = EXCLUDED.location_ids,
			keywords = EXCLUDED.keywords,
			categories = EXCLUDED.categories,
			synced_at = EXCLUDED.synced_at
	`
	_, err := r.db.Exec(ctx, query,
		rec.ItemID, rec.Name, rec.Description, rec.Price, rec.DurationMinutes,
		toInt32s(rec.LocationIDs), rec.Keywords, rec.Categories, syncedAt,
	)
	if err != nil {
		return fmt.Errorf("catalog: upsert service %d: %w", rec.ItemID, err)
	}
	return nil
}

// PruneBefore deletes services not seen since the given sync time.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM catalog_services WHERE synced_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("catalog: prune services: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ServicesAt implements Source.
func (r *Repository) ServicesAt(ctx context.Context, locationID int) ([]ServiceRecord, error) {
	query := `
		SELECT item_id, name, description, price, duration_minutes, location_ids, keywords, categories
		FROM catalog_services
		WHERE $1 = 0 OR cardinality(location_ids) = 0 OR $1 = ANY(location_ids)
		ORDER BY item_id
	`
	rows, err := r.db.Query(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var out []ServiceRecord
	for rows.Next() {
		var (
			rec       ServiceRecord
			locations []int32
		)
		if err := rows.Scan(&rec.ItemID, &rec.Name, &rec.Description, &rec.Price, &rec.DurationMinutes,
			&locations, &rec.Keywords, &rec.Categories); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		rec.LocationIDs = fromInt32s(locations)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return out, nil
}

func toInt32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

func fromInt32s(in []int32) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
