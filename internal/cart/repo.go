package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
)

// Repository persists carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByShopper loads the shopper's cart with its lines in display order.
// forUpdate takes a row lock held until the surrounding transaction ends.
func (r *Repository) FindByShopper(ctx context.Context, shopperID string, forUpdate bool) (*models.Cart, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var cart models.Cart
	if err := query.Where("shopper_id = ?", shopperID).Take(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateIfAbsent inserts cart unless the shopper already has one. It reports
// whether this call created the row; a concurrent creator wins otherwise.
func (r *Repository) CreateIfAbsent(ctx context.Context, cart *models.Cart) (bool, error) {
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "shopper_id"}}, DoNothing: true}).
		Create(cart)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Save writes the cart header and replaces its lines.
func (r *Repository) Save(ctx context.Context, cart *models.Cart) error {
	if err := r.db.WithContext(ctx).
		Model(cart).
		Select("Coupon", "ExpiresAt", "UpdatedAt").
		Updates(cart).Error; err != nil {
		return err
	}
	return r.replaceItems(ctx, cart.ID, cart.Items)
}

func (r *Repository) replaceItems(ctx context.Context, cartID uuid.UUID, items []models.CartItem) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.CartItem, len(items))
	copy(rows, items)
	for i := range rows {
		rows[i].CartID = cartID
	}
	return tx.Create(&rows).Error
}

// PurgeExpired deletes up to limit carts whose expiry passed before now.
// Carts locked by an in-flight checkout are skipped and picked up next run.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Model(&models.Cart{}).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("expires_at < ?", now).
			Order("expires_at ASC").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("cart_id IN ?", ids).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Cart{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	return purged, err
}
