package cart

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service
// and the checkout orchestrator.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByShopper(ctx context.Context, shopperID string, forUpdate bool) (*models.Cart, error)
	CreateIfAbsent(ctx context.Context, cart *models.Cart) (bool, error)
	Save(ctx context.Context, cart *models.Cart) error
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// Locker serializes mutations of one shopper's cart. The returned func
// releases the lock and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, shopperID string) (func(), error)
}

// Cache stores rendered cart views. Implementations must treat failures as
// misses; they never fail the caller.
type Cache interface {
	Get(ctx context.Context, shopperID string) (*View, bool)
	Set(ctx context.Context, view *View)
	Invalidate(ctx context.Context, shopperID string)
}
