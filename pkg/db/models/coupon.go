package models

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-engine/pkg/enums"
)

// CouponSnapshot is the coupon rule captured on a cart and copied onto the order.
type CouponSnapshot struct {
	Code  string             `json:"code"`
	Type  enums.DiscountType `json:"type"`
	Value decimal.Decimal    `json:"value"`
}
