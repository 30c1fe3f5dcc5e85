package bookings

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger is an in-process ledger for local runs and tests.
type MemoryLedger struct {
	mu     sync.RWMutex
	orders map[int]Order
	now    func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{orders: make(map[int]Order), now: time.Now}
}

func (m *MemoryLedger) Record(_ context.Context, o Order) error {
	o.fillDefaults(m.now())
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[o.OrderID]; !exists {
		m.orders[o.OrderID] = o
	}
	return nil
}

func (m *MemoryLedger) RecentByCustomer(_ context.Context, customerID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	var out []Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) MarkPaid(_ context.Context, orderID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = StatusPaid
	o.PaidAt = m.now().UTC()
	m.orders[orderID] = o
	return nil
}
