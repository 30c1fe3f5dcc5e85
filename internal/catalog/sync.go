package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

const syncPageSize = 100

// posCatalog is the subset of the POS client the sync needs.
type posCatalog interface {
	GetLocations(ctx context.Context) ([]nailit.Location, error)
	GetPaymentTypes(ctx context.Context) ([]nailit.PaymentType, error)
	GetItemsByLocation(ctx context.Context, locationID, page, pageSize int) ([]nailit.Item, int, error)
}

type serviceWriter interface {
	Upsert(ctx context.Context, rec ServiceRecord, syncedAt time.Time) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, locationIDs ...int) error
}

type snapshotWriter interface {
	Set(ctx context.Context, snap branch.Snapshot) error
}

// SyncResult summarises one sync run.
type SyncResult struct {
	Branches     int
	PaymentTypes int
	Services     int
	Pruned       int64
}

// Syncer copies locations, payment types and services from the POS into local stores.
type Syncer struct {
	pos         posCatalog
	directory   *branch.Directory
	repo        serviceWriter
	cache       cacheInvalidator
	branchStore snapshotWriter
	memory      *MemorySource
	logger      *logging.Logger
	now         func() time.Time
}

// SyncOption customises a Syncer.
type SyncOption func(*Syncer)

// WithRepository persists synced services.
func WithRepository(repo *Repository) SyncOption {
	return func(s *Syncer) {
		if repo != nil {
			s.repo = repo
		}
	}
}

// WithCache invalidates the Redis catalog cache after a sync.
func WithCache(cache *CachedSource) SyncOption {
	return func(s *Syncer) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithBranchStore publishes the branch snapshot to Redis.
func WithBranchStore(store *branch.Store) SyncOption {
	return func(s *Syncer) {
		if store != nil {
			s.branchStore = store
		}
	}
}

// WithMemorySource refreshes an in-process catalog.
func WithMemorySource(mem *MemorySource) SyncOption {
	return func(s *Syncer) {
		s.memory = mem
	}
}

// NewSyncer creates a Syncer.
func NewSyncer(pos posCatalog, directory *branch.Directory, logger *logging.Logger, opts ...SyncOption) *Syncer {
	if pos == nil {
		panic("catalog: pos client cannot be nil")
	}
	if directory == nil {
		panic("catalog: branch directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Syncer{pos: pos, directory: directory, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one full sync.
func (s *Syncer) Run(ctx context.Context) (SyncResult, error) {
	ctx, span := tracer.Start(ctx, "catalog.sync")
	defer span.End()

	res, err := s.run(ctx)
	if err != nil {
		span.RecordError(err)
		syncRunsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("catalog sync failed", "error", err)
		return res, err
	}
	syncRunsTotal.WithLabelValues("ok").Inc()
	syncedServices.Set(float64(res.Services))
	s.logger.Info("catalog sync complete",
		"branches", res.Branches,
		"payment_types", res.PaymentTypes,
		"services", res.Services,
		"pruned", res.Pruned,
	)
	return res, nil
}

func (s *Syncer) run(ctx context.Context) (SyncResult, error) {
	started := s.now().UTC()

	locations, err := s.pos.GetLocations(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("catalog: sync locations: %w", err)
	}
	payments, err := s.pos.GetPaymentTypes(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("catalog: sync payment types: %w", err)
	}
	snap := branch.SnapshotFromPOS(locations, payments, started)
	s.directory.Load(snap)
	if s.branchStore != nil {
		if err := s.branchStore.Set(ctx, snap); err != nil {
			s.logger.Warn("catalog: publish branch snapshot failed", "error", err)
		}
	}

	res := SyncResult{Branches: len(snap.Branches), PaymentTypes: len(snap.PaymentTypes)}

	var (
		order    []int
		byItem   = map[int]*ServiceRecord{}
		branches = make([]int, 0, len(snap.Branches))
	)
	for _, b := range snap.Branches {
		branches = append(branches, b.LocationID)
		items, err := s.fetchItems(ctx, b.LocationID)
		if err != nil {
			return res, err
		}
		for _, item := range items {
			if item.ItemID <= 0 || strings.TrimSpace(item.Name) == "" {
				continue
			}
			rec, ok := byItem[item.ItemID]
			if !ok {
				r := RecordFromItem(item)
				rec = &r
				byItem[item.ItemID] = rec
				order = append(order, item.ItemID)
			}
			if !containsInt(rec.LocationIDs, b.LocationID) {
				rec.LocationIDs = append(rec.LocationIDs, b.LocationID)
			}
		}
	}

	records := make([]ServiceRecord, 0, len(order))
	for _, id := range order {
		records = append(records, *byItem[id])
	}

	if s.repo != nil {
		for _, rec := range records {
			if err := s.repo.Upsert(ctx, rec, started); err != nil {
				return res, err
			}
		}
		if len(records) > 0 {
			pruned, err := s.repo.PruneBefore(ctx, started)
			if err != nil {
				return res, err
			}
			res.Pruned = pruned
		}
	}
	if s.memory != nil && len(records) > 0 {
		s.memory.Replace(records)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, branches...); err != nil {
			s.logger.Warn("catalog: cache invalidation failed", "error", err)
		}
	}
	res.Services = len(records)
	return res, nil
}

func (s *Syncer) fetchItems(ctx context.Context, locationID int) ([]nailit.Item, error) {
	var all []nailit.Item
	for page := 1; ; page++ {
		items, total, err := s.pos.GetItemsByLocation(ctx, locationID, page, syncPageSize)
		if err != nil {
			return nil, fmt.Errorf("catalog: sync items for location %d: %w", locationID, err)
		}
		all = append(all, items...)
		if len(items) < syncPageSize || (total > 0 && len(all) >= total) {
			return all, nil
		}
	}
}

// RecordFromItem converts a POS item into a catalog record.
func RecordFromItem(item nailit.Item) ServiceRecord {
	return ServiceRecord{
		ItemID:          item.ItemID,
		Name:            strings.TrimSpace(item.Name),
		Description:     strings.TrimSpace(item.Description),
		Price:           item.EffectivePrice(),
		DurationMinutes: item.DurationMinutes,
		LocationIDs:     append([]int(nil), item.LocationIDs...),
		Keywords:        KeywordsFor(item.Name, item.Groups),
		Categories:      Categorize(item.Name, item.Description, item.Groups),
	}
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
