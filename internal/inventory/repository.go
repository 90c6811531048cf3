package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/metrics"
)

// maxReserveAttempts bounds how often Reserve retries the conditional update
// after finding enough stock on re-read (stock was released in between).
const maxReserveAttempts = 3

// Repository is the Postgres backed Ledger.
type Repository struct {
	db      *gorm.DB
	metrics *metrics.CommerceMetrics
}

// NewRepository builds a ledger over db. metrics may be nil.
func NewRepository(db *gorm.DB, m *metrics.CommerceMetrics) *Repository {
	return &Repository{db: db, metrics: m}
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// Reserve decrements stock and increments the sold count with a single
// UPDATE guarded by stock_qty >= qty.
func (r *Repository) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		r.metrics.ObserveReservation(metrics.OutcomeRejected)
		return quantityOutOfRange(productID, qty)
	}
	conn := r.conn(ctx, tx)

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		res := conn.Model(&models.Product{}).
			Where("id = ? AND track_inventory = ? AND stock_qty >= ?", productID, true, qty).
			Updates(map[string]any{
				"stock_qty":  gorm.Expr("stock_qty - ?", qty),
				"sold_count": gorm.Expr("sold_count + ?", qty),
			})
		if res.Error != nil {
			r.metrics.ObserveReservation(metrics.OutcomeError)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 1 {
			r.metrics.ObserveReservation(metrics.OutcomeSuccess)
			return nil
		}

		record, err := r.read(conn, productID)
		if err != nil {
			r.metrics.ObserveReservation(metrics.OutcomeError)
			return err
		}
		if !record.TrackInventory {
			r.metrics.ObserveReservation(metrics.OutcomeNoop)
			return nil
		}
		if record.Stock < qty {
			r.metrics.ObserveReservation(metrics.OutcomeInsufficientStock)
			return insufficientStock(productID, qty, record.Stock)
		}
	}
	r.metrics.ObserveReservation(metrics.OutcomeError)
	return pkgerrors.New(pkgerrors.CodeConflict, "stock changed concurrently, retry").
		WithDetails(map[string]any{"product_id": productID.String()})
}

// Release increments stock and decrements the sold count, flooring it at zero.
func (r *Repository) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		r.metrics.ObserveRelease(metrics.OutcomeRejected)
		return quantityOutOfRange(productID, qty)
	}
	conn := r.conn(ctx, tx)

	res := conn.Model(&models.Product{}).
		Where("id = ? AND track_inventory = ?", productID, true).
		Updates(map[string]any{
			"stock_qty":  gorm.Expr("stock_qty + ?", qty),
			"sold_count": gorm.Expr("CASE WHEN sold_count >= ? THEN sold_count - ? ELSE 0 END", qty, qty),
		})
	if res.Error != nil {
		r.metrics.ObserveRelease(metrics.OutcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 1 {
		r.metrics.ObserveRelease(metrics.OutcomeSuccess)
		return nil
	}

	if _, err := r.read(conn, productID); err != nil {
		r.metrics.ObserveRelease(metrics.OutcomeError)
		return err
	}
	r.metrics.ObserveRelease(metrics.OutcomeNoop)
	return nil
}

// Get returns the current ledger view of a product.
func (r *Repository) Get(ctx context.Context, productID uuid.UUID) (StockRecord, error) {
	return r.read(r.db.WithContext(ctx), productID)
}

func (r *Repository) read(conn *gorm.DB, productID uuid.UUID) (StockRecord, error) {
	var product models.Product
	err := conn.Select("id", "stock_qty", "sold_count", "track_inventory").
		Where("id = ?", productID).
		Take(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockRecord{}, productNotFound(productID)
		}
		return StockRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
	}
	return StockRecord{
		ProductID:      product.ID,
		Stock:          product.StockQty,
		Sold:           product.SoldCount,
		TrackInventory: product.TrackInventory,
	}, nil
}
