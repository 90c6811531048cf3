// Package catalog reads the product fields that carts and orders snapshot.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

// Snapshot is the immutable view of a product captured into a cart line.
type Snapshot struct {
	ID             uuid.UUID
	Title          string
	UnitPrice      decimal.Decimal
	ImageRef       string
	TrackInventory bool
}

// Reader resolves product snapshots.
type Reader interface {
	Snapshot(ctx context.Context, productID uuid.UUID) (Snapshot, error)
}

// Repository is the gorm backed Reader.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Snapshot returns NotFound for unknown and inactive products alike.
func (r *Repository) Snapshot(ctx context.Context, productID uuid.UUID) (Snapshot, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Select("id", "title", "price", "image_ref", "track_inventory").
		Where("id = ? AND is_active = ?", productID, true).
		Take(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID.String()})
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return Snapshot{
		ID:             product.ID,
		Title:          product.Title,
		UnitPrice:      product.Price.Round(2),
		ImageRef:       product.ImageRef,
		TrackInventory: product.TrackInventory,
	}, nil
}
