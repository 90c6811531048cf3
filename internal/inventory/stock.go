package inventory

import (
	"github.com/google/uuid"
)

// StockRecord is the ledger view of one product.
type StockRecord struct {
	ProductID      uuid.UUID
	Stock          int
	Sold           int
	TrackInventory bool
}

// Reserve returns the record after taking qty units, or an InsufficientStock
// error leaving r untouched. Untracked products are returned unchanged.
func (r StockRecord) Reserve(qty int) (StockRecord, error) {
	if qty <= 0 {
		return r, quantityOutOfRange(r.ProductID, qty)
	}
	if !r.TrackInventory {
		return r, nil
	}
	if r.Stock < qty {
		return r, insufficientStock(r.ProductID, qty, r.Stock)
	}
	r.Stock -= qty
	r.Sold += qty
	return r, nil
}

// Release returns the record after putting qty units back. The sold count is
// floored at zero since a release may not be traceable to a reservation.
func (r StockRecord) Release(qty int) (StockRecord, error) {
	if qty <= 0 {
		return r, quantityOutOfRange(r.ProductID, qty)
	}
	if !r.TrackInventory {
		return r, nil
	}
	r.Stock += qty
	r.Sold -= qty
	if r.Sold < 0 {
		r.Sold = 0
	}
	return r, nil
}
