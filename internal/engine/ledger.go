package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/google/btree"
)

// holdEntry is one ACTIVE reservation in a product's ledger.
type holdEntry struct {
	ExpiresAt   time.Time
	ID          string
	Reservation *domain.Reservation
}

// holdLess orders holds by expires_at ascending, then id, so Min() is
// always the next hold to go stale.
func holdLess(a, b holdEntry) bool {
	if !a.ExpiresAt.Equal(b.ExpiresAt) {
		return a.ExpiresAt.Before(b.ExpiresAt)
	}
	return a.ID < b.ID
}

// ProductLedger is the exclusion boundary for one product. It tracks the
// product's ACTIVE holds in a B-tree ordered by deadline together with
// the running sum of their quantities.
//
// mu must be held for every read or write of the product's holds and of
// its stock in the catalog.
type ProductLedger struct {
	productID string
	mu        sync.Mutex
	holds     *btree.BTreeG[holdEntry]
	reserved  int64 // sum of Quantity over holds, stale or not
}

// NewProductLedger creates an empty ledger for productID.
func NewProductLedger(productID string) *ProductLedger {
	const degree = 16
	return &ProductLedger{
		productID: productID,
		holds:     btree.NewG[holdEntry](degree, holdLess),
	}
}

// ProductID returns the product this ledger guards.
func (l *ProductLedger) ProductID() string {
	return l.productID
}

func (l *ProductLedger) insert(r *domain.Reservation) {
	l.holds.ReplaceOrInsert(holdEntry{ExpiresAt: r.ExpiresAt, ID: r.ID, Reservation: r})
	l.reserved += r.Quantity
}

func (l *ProductLedger) remove(r *domain.Reservation) {
	if _, ok := l.holds.Delete(holdEntry{ExpiresAt: r.ExpiresAt, ID: r.ID}); ok {
		l.reserved -= r.Quantity
	}
}

// liveReserved returns the quantity held by reservations whose deadline
// is still after now. Stale holds the sweeper has not reached yet sit at
// the front of the tree and are subtracted here.
func (l *ProductLedger) liveReserved(now time.Time) int64 {
	live := l.reserved
	l.holds.Ascend(func(e holdEntry) bool {
		if e.ExpiresAt.After(now) {
			return false
		}
		live -= e.Reservation.Quantity
		return true
	})
	return live
}

// stale returns the holds whose deadline is at or before now, oldest
// first.
func (l *ProductLedger) stale(now time.Time) []*domain.Reservation {
	var out []*domain.Reservation
	l.holds.Ascend(func(e holdEntry) bool {
		if e.ExpiresAt.After(now) {
			return false
		}
		out = append(out, e.Reservation)
		return true
	})
	return out
}

// HoldCount returns the number of ACTIVE holds, stale ones included.
// The caller must hold the ledger lock.
func (l *ProductLedger) HoldCount() int {
	return l.holds.Len()
}

// LedgerManager is a thread-safe map of product id → ProductLedger.
type LedgerManager struct {
	mu      sync.RWMutex
	ledgers map[string]*ProductLedger
}

// NewLedgerManager creates a new LedgerManager.
func NewLedgerManager() *LedgerManager {
	return &LedgerManager{
		ledgers: make(map[string]*ProductLedger),
	}
}

// GetOrCreate returns the ledger for productID, creating one if it
// doesn't already exist.
func (lm *LedgerManager) GetOrCreate(productID string) *ProductLedger {
	lm.mu.RLock()
	ledger, ok := lm.ledgers[productID]
	lm.mu.RUnlock()
	if ok {
		return ledger
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	// Double-check after acquiring write lock.
	if ledger, ok = lm.ledgers[productID]; ok {
		return ledger
	}
	ledger = NewProductLedger(productID)
	lm.ledgers[productID] = ledger
	return ledger
}

// Snapshot returns the current ledgers ordered by product id. Ledgers
// created afterwards are not included.
func (lm *LedgerManager) Snapshot() []*ProductLedger {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	out := make([]*ProductLedger, 0, len(lm.ledgers))
	for _, l := range lm.ledgers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}
