// Package discount evaluates coupon codes. It never touches carts or orders;
// callers snapshot the Rule they receive and apply it themselves.
package discount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Rule is a (type, value) pair describing how a coupon reduces an amount.
type Rule struct {
	Code  string
	Type  enums.DiscountType
	Value decimal.Decimal
}

var rules = map[string]Rule{
	"SAVE10": {Code: "SAVE10", Type: enums.DiscountTypePercentage, Value: decimal.NewFromInt(10)},
	"SAVE50": {Code: "SAVE50", Type: enums.DiscountTypeFixed, Value: decimal.NewFromInt(50)},
}

// NormalizeCode trims and upper-cases a shopper supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup resolves a coupon code, case-insensitively.
func Lookup(code string) (Rule, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Rule{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon code is required")
	}
	rule, ok := rules[normalized]
	if !ok {
		return Rule{}, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "invalid coupon code").
			WithDetails(map[string]any{"code": normalized})
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Validate checks the rule is well formed: percentages within 0..100 and
// fixed amounts non-negative.
func (r Rule) Validate() error {
	switch r.Type {
	case enums.DiscountTypePercentage:
		if r.Value.IsNegative() || r.Value.GreaterThan(hundred) {
			return pkgerrors.New(pkgerrors.CodeInvalidCoupon, fmt.Sprintf("percentage %s out of range", r.Value))
		}
	case enums.DiscountTypeFixed:
		if r.Value.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInvalidCoupon, "fixed discount must be non-negative")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeInvalidCoupon, fmt.Sprintf("unknown discount type %q", r.Type))
	}
	return nil
}

// Apply returns amount reduced by the rule, rounded to cents and never below zero.
func Apply(amount decimal.Decimal, rule Rule) decimal.Decimal {
	var result decimal.Decimal
	switch rule.Type {
	case enums.DiscountTypePercentage:
		result = amount.Sub(amount.Mul(rule.Value).Div(hundred))
	case enums.DiscountTypeFixed:
		result = amount.Sub(rule.Value)
	default:
		result = amount
	}
	if result.IsNegative() {
		return decimal.Zero
	}
	return result.Round(2)
}

// Amount returns how much the rule takes off amount.
func Amount(amount decimal.Decimal, rule Rule) decimal.Decimal {
	return amount.Sub(Apply(amount, rule))
}

// Snapshot captures the rule for storage on a cart or order.
func (r Rule) Snapshot() *models.CouponSnapshot {
	return &models.CouponSnapshot{Code: r.Code, Type: r.Type, Value: r.Value}
}

// FromSnapshot rebuilds a rule from a stored snapshot. A nil or malformed
// snapshot yields false so callers skip discounting.
func FromSnapshot(s *models.CouponSnapshot) (Rule, bool) {
	if s == nil {
		return Rule{}, false
	}
	rule := Rule{Code: s.Code, Type: s.Type, Value: s.Value}
	return rule, rule.Validate() == nil
}
