package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/pkg/enums"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

// Order is the frozen record of a checkout. Money columns are written once at
// creation; only status, payment and fulfillment columns change afterwards.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string                `gorm:"column:order_number;type:varchar(32);not null;uniqueIndex:ux_orders_order_number"`
	UserID          string                `gorm:"column:user_id;type:varchar(128);not null;index:idx_orders_user_created,priority:1"`
	Items           []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;type:varchar(32);not null"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;type:varchar(16);not null"`
	PaymentResult   *types.PaymentResult  `gorm:"column:payment_result;type:jsonb;serializer:json"`
	ItemsPrice      decimal.Decimal       `gorm:"column:items_price;type:numeric(12,2);not null"`
	TaxPrice        decimal.Decimal       `gorm:"column:tax_price;type:numeric(12,2);not null"`
	ShippingPrice   decimal.Decimal       `gorm:"column:shipping_price;type:numeric(12,2);not null"`
	DiscountPrice   decimal.Decimal       `gorm:"column:discount_price;type:numeric(12,2);not null"`
	TotalPrice      decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null"`
	Coupon          *CouponSnapshot       `gorm:"column:coupon;type:jsonb;serializer:json"`
	Status          enums.OrderStatus     `gorm:"column:status;type:varchar(16);not null;index:idx_orders_status"`
	TrackingNumber  *string               `gorm:"column:tracking_number"`
	Notes           *string               `gorm:"column:notes"`
	DeliveredAt     *time.Time            `gorm:"column:delivered_at"`
	CancelledAt     *time.Time            `gorm:"column:cancelled_at"`
	RefundedAt      *time.Time            `gorm:"column:refunded_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime;index:idx_orders_user_created,priority:2"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	if o.OrderNumber == "" {
		o.OrderNumber = OrderNumberFor(o.ID)
	}
	return nil
}

// OrderNumberFor derives the human readable reference "ORD-" + the last eight
// hex characters of the id.
func OrderNumberFor(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("ORD-%s", strings.ToUpper(hex[len(hex)-8:]))
}

// OrderItem is a frozen copy of a cart line at checkout time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:idx_order_items_order_id"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	ImageRef  string          `gorm:"column:image_ref;not null;default:''"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Variants  types.Variants  `gorm:"column:variants;type:jsonb;serializer:json"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	Position  int             `gorm:"column:position;not null;default:0"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
