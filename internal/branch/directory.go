package branch

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
)

// Snapshot is the serialized form of the directory.
type Snapshot struct {
	Branches     []Branch        `json:"branches"`
	PaymentTypes []PaymentOption `json:"payment_types"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Directory is a read-mostly view of branches and payment types.
// Sync replaces the snapshot wholesale; readers never see a partial update.
type Directory struct {
	mu             sync.RWMutex
	snapshot       Snapshot
	defaultBranch  Branch
	defaultPayment PaymentOption
}

// NewDirectory creates a directory seeded with the configured defaults.
func NewDirectory(defaultBranch Branch, defaultPayment PaymentOption) *Directory {
	d := &Directory{defaultBranch: defaultBranch, defaultPayment: defaultPayment}
	d.snapshot = Snapshot{
		Branches:     []Branch{defaultBranch},
		PaymentTypes: []PaymentOption{defaultPayment},
	}
	return d
}

// Load swaps in a new snapshot. Empty snapshots are ignored.
func (d *Directory) Load(s Snapshot) {
	if len(s.Branches) == 0 {
		return
	}
	branches := append([]Branch(nil), s.Branches...)
	// longer names first so "Al-Plaza Mall" wins over "Plaza"
	sort.SliceStable(branches, func(i, j int) bool {
		return len(branches[i].Name) > len(branches[j].Name)
	})
	payments := append([]PaymentOption(nil), s.PaymentTypes...)
	if len(payments) == 0 {
		payments = []PaymentOption{d.defaultPayment}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range branches {
		if b.LocationID == d.defaultBranch.LocationID && b.HasHours() {
			d.defaultBranch = b
		}
	}
	d.snapshot = Snapshot{Branches: branches, PaymentTypes: payments, UpdatedAt: s.UpdatedAt}
}

// Snapshot returns a copy of the current snapshot.
func (d *Directory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Branches:     append([]Branch(nil), d.snapshot.Branches...),
		PaymentTypes: append([]PaymentOption(nil), d.snapshot.PaymentTypes...),
		UpdatedAt:    d.snapshot.UpdatedAt,
	}
}

// Branches lists known branches.
func (d *Directory) Branches() []Branch {
	return d.Snapshot().Branches
}

// Default returns the primary branch.
func (d *Directory) Default() Branch {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultBranch
}

// DefaultPayment returns the configured payment method.
func (d *Directory) DefaultPayment() PaymentOption {
	return d.defaultPayment
}

// ByID looks up a branch by POS location id.
func (d *Directory) ByID(id int) (Branch, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, b := range d.snapshot.Branches {
		if b.LocationID == id {
			return b, true
		}
	}
	if d.defaultBranch.LocationID == id {
		return d.defaultBranch, true
	}
	return Branch{}, false
}

// Match finds the first branch whose name appears in message, ignoring case.
func (d *Directory) Match(message string) (Branch, bool) {
	lower := strings.ToLower(message)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, b := range d.snapshot.Branches {
		name := strings.ToLower(strings.TrimSpace(b.Name))
		if name != "" && strings.Contains(lower, name) {
			return b, true
		}
	}
	return Branch{}, false
}

// SnapshotFromPOS builds a snapshot from the POS location and payment-type lists.
// Disabled payment types are dropped.
func SnapshotFromPOS(locations []nailit.Location, payments []nailit.PaymentType, now time.Time) Snapshot {
	s := Snapshot{UpdatedAt: now}
	for _, loc := range locations {
		if loc.LocationID == 0 || strings.TrimSpace(loc.Name) == "" {
			continue
		}
		s.Branches = append(s.Branches, FromLocation(loc))
	}
	for _, p := range payments {
		if !p.Enabled {
			continue
		}
		s.PaymentTypes = append(s.PaymentTypes, PaymentOption{TypeID: p.TypeID, Name: p.Name, Code: p.Code})
	}
	return s
}
