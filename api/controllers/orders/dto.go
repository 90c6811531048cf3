package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	"github.com/angelmondragon/commerce-engine/pkg/pagination"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

// OrderResponse is the public rendering of an order.
type OrderResponse struct {
	ID              uuid.UUID              `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	UserID          string                 `json:"user_id"`
	Status          enums.OrderStatus      `json:"status"`
	Items           []OrderItemResponse    `json:"items"`
	ShippingAddress types.ShippingAddress  `json:"shipping_address"`
	PaymentMethod   enums.PaymentMethod    `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus    `json:"payment_status"`
	PaymentResult   *types.PaymentResult   `json:"payment_result,omitempty"`
	ItemsPrice      decimal.Decimal        `json:"items_price"`
	TaxPrice        decimal.Decimal        `json:"tax_price"`
	ShippingPrice   decimal.Decimal        `json:"shipping_price"`
	DiscountPrice   decimal.Decimal        `json:"discount_price"`
	TotalPrice      decimal.Decimal        `json:"total_price"`
	Coupon          *models.CouponSnapshot `json:"coupon,omitempty"`
	TrackingNumber  *string                `json:"tracking_number,omitempty"`
	Notes           *string                `json:"notes,omitempty"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time             `json:"refunded_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageRef  string          `json:"image_ref"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variants  types.Variants  `json:"variants"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewOrderResponse renders order. Items keep their checkout order.
func NewOrderResponse(order *models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		variants := item.Variants
		if variants == nil {
			variants = types.Variants{}
		}
		items = append(items, OrderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageRef:  item.ImageRef,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Variants:  variants,
			LineTotal: item.LineTotal,
		})
	}
	return OrderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		Items:           items,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		PaymentResult:   order.PaymentResult,
		ItemsPrice:      order.ItemsPrice,
		TaxPrice:        order.TaxPrice,
		ShippingPrice:   order.ShippingPrice,
		DiscountPrice:   order.DiscountPrice,
		TotalPrice:      order.TotalPrice,
		Coupon:          order.Coupon,
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		RefundedAt:      order.RefundedAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func newOrderPage(page pagination.Page[models.Order]) pagination.Page[OrderResponse] {
	items := make([]OrderResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, NewOrderResponse(&page.Items[i]))
	}
	return pagination.Page[OrderResponse]{Items: items, NextCursor: page.NextCursor}
}
