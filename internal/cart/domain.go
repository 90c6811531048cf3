package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/commerce-engine/internal/catalog"
	"github.com/angelmondragon/commerce-engine/internal/discount"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

// MaxQuantity caps a single line. Quantities above it are clamped, not rejected.
const MaxQuantity = 99

// New returns an empty cart for shopperID expiring ttl after now.
func New(shopperID string, now time.Time, ttl time.Duration) *models.Cart {
	return &models.Cart{
		ID:        uuid.New(),
		ShopperID: shopperID,
		ExpiresAt: now.Add(ttl),
	}
}

// Touch pushes the expiry of c to now+ttl.
func Touch(c *models.Cart, now time.Time, ttl time.Duration) {
	c.ExpiresAt = now.Add(ttl)
}

// Expired reports whether c is past its expiry and should be treated as empty.
func Expired(c *models.Cart, now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

// AddItem merges qty units of the product into c. An existing line with the
// same variant set grows, clamped at MaxQuantity; otherwise a new line is
// appended with the snapshot's title, image and price.
func AddItem(c *models.Cart, snap catalog.Snapshot, qty int, variants types.Variants, now time.Time) error {
	if qty < 1 {
		return quantityOutOfRange(snap.ID, qty)
	}
	if err := validateVariants(snap.ID, variants); err != nil {
		return err
	}
	key := variants.Key()
	if idx := findLine(c, snap.ID, key); idx >= 0 {
		c.Items[idx].Quantity = clamp(c.Items[idx].Quantity + qty)
		return nil
	}
	c.Items = append(c.Items, models.CartItem{
		ID:         uuid.New(),
		CartID:     c.ID,
		ProductID:  snap.ID,
		VariantKey: key,
		Variants:   variants.Clone(),
		Name:       snap.Title,
		ImageRef:   snap.ImageRef,
		UnitPrice:  snap.UnitPrice,
		Quantity:   clamp(qty),
		Position:   nextPosition(c),
		AddedAt:    now,
	})
	return nil
}

// SetQuantity sets the quantity of an existing line. Zero removes the line and
// is a no-op when the line is absent.
func SetQuantity(c *models.Cart, productID uuid.UUID, variants types.Variants, qty int) error {
	if qty < 0 {
		return quantityOutOfRange(productID, qty)
	}
	if err := validateVariants(productID, variants); err != nil {
		return err
	}
	if qty == 0 {
		RemoveItem(c, productID, variants)
		return nil
	}
	idx := -1
	if c != nil {
		idx = findLine(c, productID, variants.Key())
	}
	if idx < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart").
			WithDetails(map[string]any{"product_id": productID.String()})
	}
	c.Items[idx].Quantity = clamp(qty)
	return nil
}

func validateVariants(productID uuid.UUID, variants types.Variants) error {
	if err := variants.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).
			WithDetails(map[string]any{"product_id": productID.String()})
	}
	return nil
}

// RemoveItem drops the matching line and reports whether one was removed.
func RemoveItem(c *models.Cart, productID uuid.UUID, variants types.Variants) bool {
	if c == nil {
		return false
	}
	idx := findLine(c, productID, variants.Key())
	if idx < 0 {
		return false
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return true
}

// ApplyCoupon stores the snapshot of the coupon named by code. c is left
// unchanged when the code is unknown.
func ApplyCoupon(c *models.Cart, code string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeInvalidCoupon, "no cart to apply a coupon to")
	}
	rule, err := discount.Lookup(code)
	if err != nil {
		return err
	}
	c.Coupon = rule.Snapshot()
	return nil
}

// RemoveCoupon clears the coupon snapshot.
func RemoveCoupon(c *models.Cart) {
	if c != nil {
		c.Coupon = nil
	}
}

// Clear empties items and coupon.
func Clear(c *models.Cart) {
	if c == nil {
		return
	}
	c.Items = nil
	c.Coupon = nil
}

// Totals are the derived money fields of a cart.
type Totals struct {
	TotalItems int
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	TotalPrice decimal.Decimal
}

// ComputeTotals derives Subtotal from the lines and TotalPrice by running the
// coupon over the subtotal.
func ComputeTotals(c *models.Cart) Totals {
	totals := Totals{Subtotal: decimal.Zero, Discount: decimal.Zero, TotalPrice: decimal.Zero}
	if c == nil {
		return totals
	}
	for _, item := range c.Items {
		totals.TotalItems += item.Quantity
		totals.Subtotal = totals.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	totals.Subtotal = totals.Subtotal.Round(2)
	totals.TotalPrice = totals.Subtotal
	if rule, ok := discount.FromSnapshot(c.Coupon); ok {
		totals.TotalPrice = discount.Apply(totals.Subtotal, rule)
		totals.Discount = totals.Subtotal.Sub(totals.TotalPrice)
	}
	return totals
}

func findLine(c *models.Cart, productID uuid.UUID, variantKey string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].VariantKey == variantKey {
			return i
		}
	}
	return -1
}

func nextPosition(c *models.Cart) int {
	next := 0
	for _, item := range c.Items {
		if item.Position >= next {
			next = item.Position + 1
		}
	}
	return next
}

func clamp(qty int) int {
	if qty > MaxQuantity {
		return MaxQuantity
	}
	return qty
}

func quantityOutOfRange(productID uuid.UUID, qty int) error {
	return pkgerrors.New(pkgerrors.CodeQuantityOutOfRange, "quantity must be at least 1").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"quantity":   qty,
		})
}
