package inventory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemoryLedger is a process-local Ledger. A single mutex makes every
// operation linearizable; the tx argument is ignored.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[uuid.UUID]StockRecord
}

// NewMemoryLedger seeds a ledger with records.
func NewMemoryLedger(records ...StockRecord) *MemoryLedger {
	m := &MemoryLedger{records: make(map[uuid.UUID]StockRecord, len(records))}
	for _, record := range records {
		m.records[record.ProductID] = record
	}
	return m
}

func (m *MemoryLedger) Reserve(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) error {
	return m.apply(productID, func(r StockRecord) (StockRecord, error) { return r.Reserve(qty) })
}

func (m *MemoryLedger) Release(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) error {
	return m.apply(productID, func(r StockRecord) (StockRecord, error) { return r.Release(qty) })
}

// Get returns a copy of the record for productID.
func (m *MemoryLedger) Get(productID uuid.UUID) (StockRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[productID]
	return record, ok
}

func (m *MemoryLedger) apply(productID uuid.UUID, fn func(StockRecord) (StockRecord, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[productID]
	if !ok {
		return productNotFound(productID)
	}
	next, err := fn(record)
	if err != nil {
		return err
	}
	m.records[productID] = next
	return nil
}
