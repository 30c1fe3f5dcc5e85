package conversation

import (
	"context"
	"sync"
	"time"
)

const defaultSessionTTL = 24 * time.Hour

// StateStore persists conversation state keyed by customer id.
type StateStore interface {
	// Get returns nil, nil when no state exists.
	Get(ctx context.Context, customerID string) (*State, error)
	GetOrCreate(ctx context.Context, customerID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Reset(ctx context.Context, customerID string) error
}

// MemoryStateStore keeps state in process and evicts idle sessions after ttl.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]*State
	ttl    time.Duration
	now    func() time.Time
}

var _ StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates a store. A non-positive ttl uses 24h.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &MemoryStateStore{states: make(map[string]*State), ttl: ttl, now: time.Now}
}

// Get implements StateStore. Callers receive a copy.
func (m *MemoryStateStore) Get(_ context.Context, customerID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[customerID]
	if !ok {
		return nil, nil
	}
	if m.expired(st) {
		delete(m.states, customerID)
		return nil, nil
	}
	return st.Clone(), nil
}

// GetOrCreate implements StateStore.
func (m *MemoryStateStore) GetOrCreate(ctx context.Context, customerID string) (*State, error) {
	st, err := m.Get(ctx, customerID)
	if err != nil || st != nil {
		return st, err
	}
	return NewState(customerID, m.now()), nil
}

// Save implements StateStore.
func (m *MemoryStateStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return nil
	}
	state.LastUpdated = m.now()
	m.mu.Lock()
	m.states[state.CustomerID] = state.Clone()
	m.mu.Unlock()
	return nil
}

// Reset implements StateStore.
func (m *MemoryStateStore) Reset(_ context.Context, customerID string) error {
	m.mu.Lock()
	delete(m.states, customerID)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStateStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, st := range m.states {
		if m.expired(st) {
			delete(m.states, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *MemoryStateStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					sessionsEvicted.Add(float64(n))
				}
			}
		}
	}()
}

func (m *MemoryStateStore) expired(st *State) bool {
	return m.now().Sub(st.LastUpdated) > m.ttl
}

// customerLocks serializes turns per customer. Entries are reference counted
// so idle customers do not accumulate mutexes.
type customerLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newCustomerLocks() *customerLocks {
	return &customerLocks{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the customer's lock is held and returns its release func.
func (c *customerLocks) Lock(customerID string) func() {
	c.mu.Lock()
	entry, ok := c.locks[customerID]
	if !ok {
		entry = &lockEntry{}
		c.locks[customerID] = entry
	}
	entry.refs++
	c.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		c.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(c.locks, customerID)
		}
		c.mu.Unlock()
	}
}

func (c *customerLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
