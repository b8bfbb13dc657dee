package orders

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory. Each order has its own
// lock, so events for different orders never wait on each other.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*memOrder

	ledgerMu sync.Mutex
	ledger   map[string]LedgerEntry

	Now func() time.Time
}

type memOrder struct {
	mu sync.Mutex
	o  Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*memOrder),
		ledger: make(map[string]LedgerEntry),
		Now:    time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, o Order) (Order, error) {
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return Order{}, fmt.Errorf("%w: id %s already exists", ErrConflict, o.ID)
	}
	now := m.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	m.orders[o.ID] = &memOrder{o: o}
	return o, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Order, error) {
	e := m.lookup(id)
	if e == nil {
		return Order{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.o, nil
}

func (m *MemoryStore) AttachExternalRef(ctx context.Context, id, ref string) (Order, error) {
	e := m.lookup(id)
	if e == nil {
		return Order{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.o.ExternalRef != "" || e.o.Status != StatusPending {
		return Order{}, fmt.Errorf("%w: session already created for order %s", ErrConflict, id)
	}
	e.o.ExternalRef = ref
	e.o.Version++
	e.o.UpdatedAt = m.Now().UTC()
	return e.o, nil
}

func (m *MemoryStore) ApplyEvent(ctx context.Context, ev PaymentEvent, decide DecideFunc) (Order, error) {
	e := m.lookup(ev.OrderID)
	if e == nil {
		return Order{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next, outcome, derr := decide(e.o, ev)
	if derr != nil && outcome == "" {
		return e.o, derr
	}

	m.ledgerMu.Lock()
	if _, seen := m.ledger[ev.ID]; seen {
		m.ledgerMu.Unlock()
		return e.o, ErrDuplicateEvent
	}
	now := m.Now().UTC()
	m.ledger[ev.ID] = LedgerEntry{
		EventID:       ev.ID,
		OrderID:       ev.OrderID,
		EventType:     ev.Type,
		OccurredAt:    ev.OccurredAt,
		PayloadDigest: ev.PayloadDigest,
		Outcome:       outcome,
		ProcessedAt:   now,
	}
	m.ledgerMu.Unlock()

	if derr != nil {
		return e.o, derr
	}
	next.UpdatedAt = now
	e.o = next
	return e.o, nil
}

func (m *MemoryStore) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()
	_, ok := m.ledger[eventID]
	return ok, nil
}

// Ledger returns the recorded entry for eventID.
func (m *MemoryStore) Ledger(eventID string) (LedgerEntry, bool) {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()
	le, ok := m.ledger[eventID]
	return le, ok
}

func (m *MemoryStore) lookup(id string) *memOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}
