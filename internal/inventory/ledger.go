// Package inventory owns per-product stock and sold counts. Every mutation is
// a single conditional write per product, so concurrent reservations of the
// last unit cannot both succeed.
package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger reserves and releases stock. tx may be nil, in which case the
// implementation uses its own connection.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Line is one (product, quantity) pair to reserve or release.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// ReserveAll reserves every line in order. When one fails, the lines already
// reserved are released again before the failure is returned, so the caller
// never observes a partial reservation.
func ReserveAll(ctx context.Context, ledger Ledger, tx *gorm.DB, lines []Line) error {
	reserved := make([]Line, 0, len(lines))
	for _, line := range lines {
		if err := ledger.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
			if rollbackErr := ReleaseAll(ctx, ledger, tx, reserved); rollbackErr != nil {
				return rollbackErr
			}
			return err
		}
		reserved = append(reserved, line)
	}
	return nil
}

// ReleaseAll puts every line back, stopping at the first failure.
func ReleaseAll(ctx context.Context, ledger Ledger, tx *gorm.DB, lines []Line) error {
	for i := len(lines) - 1; i >= 0; i-- {
		if err := ledger.Release(ctx, tx, lines[i].ProductID, lines[i].Quantity); err != nil {
			return err
		}
	}
	return nil
}
