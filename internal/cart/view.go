package cart

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

// View is the read model returned to shoppers and cached in Redis.
type View struct {
	ShopperID  string                 `json:"shopper_id"`
	Items      []ItemView             `json:"items"`
	Coupon     *models.CouponSnapshot `json:"coupon,omitempty"`
	TotalItems int                    `json:"total_items"`
	Subtotal   decimal.Decimal        `json:"subtotal"`
	Discount   decimal.Decimal        `json:"discount"`
	TotalPrice decimal.Decimal        `json:"total_price"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
}

// ItemView is one line of a View.
type ItemView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	ImageRef  string          `json:"image_ref"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variants  types.Variants  `json:"variants"`
	LineTotal decimal.Decimal `json:"line_total"`
	AddedAt   time.Time       `json:"added_at"`
}

// NewView renders c. A nil cart renders as an empty cart for shopperID.
func NewView(shopperID string, c *models.Cart) *View {
	totals := ComputeTotals(c)
	view := &View{
		ShopperID:  shopperID,
		Items:      []ItemView{},
		TotalItems: totals.TotalItems,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		TotalPrice: totals.TotalPrice,
	}
	if c == nil {
		return view
	}
	expires := c.ExpiresAt
	view.ExpiresAt = &expires
	view.Coupon = c.Coupon

	items := make([]models.CartItem, len(c.Items))
	copy(items, c.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	for _, item := range items {
		variants := item.Variants
		if variants == nil {
			variants = types.Variants{}
		}
		view.Items = append(view.Items, ItemView{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageRef:  item.ImageRef,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Variants:  variants,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
			AddedAt:   item.AddedAt,
		})
	}
	return view
}
