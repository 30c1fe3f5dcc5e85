package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("salon.internal.catalog")

// Resolver ranks catalog services against customer requests.
type Resolver struct {
	source Source
	logger *logging.Logger
}

// NewResolver creates a resolver over the given source.
func NewResolver(source Source, logger *logging.Logger) *Resolver {
	if source == nil {
		panic("catalog: source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{source: source, logger: logger}
}

type scored struct {
	rec   ServiceRecord
	score int
}

// Search returns services offered at locationID ranked by Score, best first.
// Equal scores keep catalog order.
func (r *Resolver) Search(ctx context.Context, query string, locationID int) ([]ServiceRecord, error) {
	ctx, span := tracer.Start(ctx, "catalog.search")
	defer span.End()
	span.SetAttributes(attribute.Int("salon.location_id", locationID))

	recs, err := r.source.ServicesAt(ctx, locationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: load services: %w", err)
	}
	var hits []scored
	for _, rec := range recs {
		if !rec.OfferedAt(locationID) {
			continue
		}
		if s := Score(rec, query); s > 0 {
			hits = append(hits, scored{rec: rec, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]ServiceRecord, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.rec)
	}
	lookupsTotal.WithLabelValues(resultLabel(len(out) > 0)).Inc()
	return out, nil
}

// BestForCategory picks the real service in category that best fits the message.
// When the catalog has nothing in that category a synthetic suggestion is returned.
func (r *Resolver) BestForCategory(ctx context.Context, category, message string, locationID int) (ServiceRecord, error) {
	best, err := r.bestReal(ctx, category, message, locationID)
	if err == nil {
		lookupsTotal.WithLabelValues("match").Inc()
		return best, nil
	}
	if err != ErrNoMatch {
		return ServiceRecord{}, err
	}
	if fb, ok := Fallback(category); ok {
		r.logger.Info("catalog: no real service for category, offering suggestion", "category", category, "location_id", locationID)
		lookupsTotal.WithLabelValues("synthetic").Inc()
		return fb, nil
	}
	lookupsTotal.WithLabelValues("miss").Inc()
	return ServiceRecord{}, ErrNoMatch
}

// ResolveReal maps a selection (possibly synthetic) onto a real catalog service.
// It tries the selection name first and then the category.
func (r *Resolver) ResolveReal(ctx context.Context, name, category string, locationID int) (ServiceRecord, error) {
	hits, err := r.Search(ctx, name, locationID)
	if err != nil {
		return ServiceRecord{}, err
	}
	for _, h := range hits {
		if h.IsSynthetic || h.ItemID <= 0 {
			continue
		}
		// a name hit in another category is a false friend ("Classic Facial" vs "Classic Pedicure")
		if category != "" && len(h.Categories) > 0 && !hasString(h.Categories, category) {
			continue
		}
		return h, nil
	}
	if category == "" {
		return ServiceRecord{}, ErrNoMatch
	}
	return r.bestReal(ctx, category, name, locationID)
}

func (r *Resolver) bestReal(ctx context.Context, category, message string, locationID int) (ServiceRecord, error) {
	ctx, span := tracer.Start(ctx, "catalog.best_for_category")
	defer span.End()
	span.SetAttributes(attribute.String("salon.category", category), attribute.Int("salon.location_id", locationID))

	recs, err := r.source.ServicesAt(ctx, locationID)
	if err != nil {
		span.RecordError(err)
		return ServiceRecord{}, fmt.Errorf("catalog: load services: %w", err)
	}
	var (
		best      ServiceRecord
		bestScore int
	)
	for _, rec := range recs {
		if rec.IsSynthetic || rec.ItemID <= 0 || !rec.OfferedAt(locationID) || !hasString(rec.Categories, category) {
			continue
		}
		if s := messageScore(rec, message); s > bestScore {
			best, bestScore = rec, s
		}
	}
	if bestScore == 0 {
		return ServiceRecord{}, ErrNoMatch
	}
	return best, nil
}

func resultLabel(hit bool) string {
	if hit {
		return "match"
	}
	return "miss"
}
