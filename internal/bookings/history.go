package bookings

import (
	"context"
	"fmt"
	"sort"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var historyTracer = otel.Tracer("salon.internal.bookings")

const maxCandidates = 5

// OrderLister reads ledger orders for a customer.
type OrderLister interface {
	RecentByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
}

type posOrders interface {
	GetOrderHistory(ctx context.Context, mobile string) ([]nailit.CustomerOrder, error)
}

// History finds a customer's candidate orders: ledger entries first, then
// whatever the POS knows for the customer's phone.
type History struct {
	ledger OrderLister
	pos    posOrders
	logger *logging.Logger
}

// NewHistory builds an order history. pos may be nil.
func NewHistory(ledger OrderLister, pos posOrders, logger *logging.Logger) *History {
	if ledger == nil {
		panic("bookings: ledger required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &History{ledger: ledger, pos: pos, logger: logger}
}

// RecentOrders returns candidate POS order ids, newest first.
// It fails only when every source fails.
func (h *History) RecentOrders(ctx context.Context, customerID string) ([]int, error) {
	ctx, span := historyTracer.Start(ctx, "bookings.recent_orders")
	defer span.End()
	span.SetAttributes(attribute.String("salon.customer_id", customerID))

	var (
		ids  []int
		seen = make(map[int]struct{})
		errs []error
	)
	add := func(id int) {
		if id <= 0 {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	orders, err := h.ledger.RecentByCustomer(ctx, customerID, maxCandidates)
	if err != nil {
		h.logger.Warn("order ledger lookup failed", "customer_id", customerID, "error", err)
		errs = append(errs, err)
	}
	for _, o := range orders {
		add(o.OrderID)
	}

	if h.pos != nil && len(ids) < maxCandidates {
		if mobile := nailit.NormalizePhone(customerID); mobile != "" {
			remote, err := h.pos.GetOrderHistory(ctx, mobile)
			if err != nil {
				h.logger.Warn("pos order history lookup failed", "customer_id", customerID, "error", err)
				errs = append(errs, err)
			}
			sort.SliceStable(remote, func(i, j int) bool { return remote[i].OrderID > remote[j].OrderID })
			for _, o := range remote {
				add(o.OrderID)
			}
		}
	}

	if len(ids) > maxCandidates {
		ids = ids[:maxCandidates]
	}
	if len(ids) == 0 && len(errs) > 0 {
		span.RecordError(errs[0])
		return nil, fmt.Errorf("bookings: recent orders: %w", errs[0])
	}
	span.SetAttributes(attribute.Int("salon.candidates", len(ids)))
	return ids, nil
}
