// Package payloads holds the JSON bodies of the order events on the outbox.
package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-engine/pkg/enums"
)

// OrderLine is the frozen line data carried by order events.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is emitted once checkout commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	UserID      string              `json:"user_id"`
	TotalPrice  decimal.Decimal     `json:"total_price"`
	CouponCode  string              `json:"coupon_code,omitempty"`
	Payment     enums.PaymentMethod `json:"payment_method"`
	Lines       []OrderLine         `json:"lines"`
}

// OrderStatusChangedEvent is emitted on every state machine transition other
// than cancellation.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	Restocked      bool              `json:"restocked"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// OrderCancelledEvent is emitted after the reserved stock was released.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	From          enums.OrderStatus `json:"from"`
	ReleasedLines []OrderLine       `json:"released_lines"`
	CancelledAt   time.Time         `json:"cancelled_at"`
}

// OrderPaymentRecordedEvent is emitted when a payment result is attached.
type OrderPaymentRecordedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	ProviderRef   string              `json:"provider_ref,omitempty"`
}
