package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-engine/internal/discount"
	"github.com/angelmondragon/commerce-engine/pkg/config"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
)

// Pricing holds the flat tax and shipping rules.
type Pricing struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultPricing is an 8% tax and a 5.99 fee waived above 50.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.RequireFromString("0.08"),
		ShippingFee:           decimal.RequireFromString("5.99"),
		FreeShippingThreshold: decimal.NewFromInt(50),
	}
}

// PricingFromConfig reads the pricing rules from the commerce config.
func PricingFromConfig(cfg config.CommerceConfig) Pricing {
	return Pricing{
		TaxRate:               cfg.TaxRate,
		ShippingFee:           cfg.ShippingFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}
}

// Totals are the frozen money fields of an order.
type Totals struct {
	Items    decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Price computes order totals for the given lines. The coupon, if any, applies
// to the gross of items, tax and shipping.
func Price(items []models.OrderItem, coupon *models.CouponSnapshot, p Pricing) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	subtotal = subtotal.Round(2)

	t := Totals{
		Items:    subtotal,
		Tax:      subtotal.Mul(p.TaxRate).Round(2),
		Shipping: p.ShippingFee.Round(2),
		Discount: decimal.Zero,
	}
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		t.Shipping = decimal.Zero
	}

	gross := t.Items.Add(t.Tax).Add(t.Shipping)
	t.Total = gross
	if rule, ok := discount.FromSnapshot(coupon); ok {
		t.Discount = discount.Amount(gross, rule)
		t.Total = gross.Sub(t.Discount)
	}
	return t
}

// freezeLines copies cart lines into order lines. Catalog data is taken from
// the cart snapshot and never re-read.
func freezeLines(items []models.CartItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageRef:  item.ImageRef,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Variants:  item.Variants,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
		})
	}
	return out
}
