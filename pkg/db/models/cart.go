package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/pkg/types"
)

// Cart is the single mutable basket of a shopper.
type Cart struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ShopperID string          `gorm:"column:shopper_id;type:varchar(128);not null;uniqueIndex:ux_carts_shopper_id"`
	Items     []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Coupon    *CouponSnapshot `gorm:"column:coupon;type:jsonb;serializer:json"`
	ExpiresAt time.Time       `gorm:"column:expires_at;not null;index:idx_carts_expires_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem is one (product, variant set) line of a cart with the catalog data
// captured when it was added.
type CartItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID     uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_line,priority:1"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_items_line,priority:2"`
	VariantKey string          `gorm:"column:variant_key;not null;default:'';uniqueIndex:ux_cart_items_line,priority:3"`
	Variants   types.Variants  `gorm:"column:variants;type:jsonb;serializer:json"`
	Name       string          `gorm:"column:name;not null"`
	ImageRef   string          `gorm:"column:image_ref;not null;default:''"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity   int             `gorm:"column:quantity;not null;check:chk_cart_items_quantity,quantity BETWEEN 1 AND 99"`
	Position   int             `gorm:"column:position;not null;default:0"`
	AddedAt    time.Time       `gorm:"column:added_at;not null"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
