package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestLookupKnownCodesCaseInsensitive(t *testing.T) {
	rule, err := Lookup("  save10 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", rule.Code)
	assert.Equal(t, enums.DiscountTypePercentage, rule.Type)

	rule, err = Lookup("SAVE50")
	require.NoError(t, err)
	assert.Equal(t, enums.DiscountTypeFixed, rule.Type)
	assert.True(t, rule.Value.Equal(dec("50")))
}

func TestLookupUnknownCodeIsInvalidCoupon(t *testing.T) {
	for _, code := range []string{"", "FREEBIE", "SAVE1000"} {
		_, err := Lookup(code)
		require.Error(t, err, code)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon), code)
	}
}

func TestApply(t *testing.T) {
	percent10 := Rule{Type: enums.DiscountTypePercentage, Value: dec("10")}
	percent100 := Rule{Type: enums.DiscountTypePercentage, Value: dec("100")}
	fixed50 := Rule{Type: enums.DiscountTypeFixed, Value: dec("50")}

	tests := []struct {
		name   string
		amount string
		rule   Rule
		want   string
	}{
		{name: "percentage on subtotal", amount: "100.00", rule: percent10, want: "90.00"},
		{name: "percentage rounds to cents", amount: "33.33", rule: percent10, want: "30.00"},
		{name: "full percentage", amount: "42.10", rule: percent100, want: "0"},
		{name: "fixed", amount: "80.00", rule: fixed50, want: "30.00"},
		{name: "fixed clamps at zero", amount: "20.00", rule: fixed50, want: "0"},
		{name: "zero amount", amount: "0", rule: fixed50, want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(dec(tt.amount), tt.rule)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestAmountIsDifference(t *testing.T) {
	rule := Rule{Type: enums.DiscountTypeFixed, Value: dec("50")}
	assert.True(t, Amount(dec("20"), rule).Equal(dec("20")))
	assert.True(t, Amount(dec("120"), rule).Equal(dec("50")))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Rule{Type: enums.DiscountTypePercentage, Value: dec("100")}.Validate())
	assert.Error(t, Rule{Type: enums.DiscountTypePercentage, Value: dec("101")}.Validate())
	assert.Error(t, Rule{Type: enums.DiscountTypeFixed, Value: dec("-1")}.Validate())
	assert.Error(t, Rule{Type: "bogus", Value: dec("1")}.Validate())
}

func TestSnapshotRoundTrip(t *testing.T) {
	rule, err := Lookup("SAVE10")
	require.NoError(t, err)

	back, ok := FromSnapshot(rule.Snapshot())
	require.True(t, ok)
	assert.Equal(t, rule.Code, back.Code)
	assert.True(t, rule.Value.Equal(back.Value))

	_, ok = FromSnapshot(nil)
	assert.False(t, ok)
}

func TestCouponTableIsWellFormed(t *testing.T) {
	for code, rule := range rules {
		assert.NoError(t, rule.Validate(), code)
		assert.Equal(t, code, rule.Code)
	}
}

func TestLookupRejectsMalformedRule(t *testing.T) {
	rules["BROKEN"] = Rule{Code: "BROKEN", Type: enums.DiscountTypePercentage, Value: dec("150")}
	t.Cleanup(func() { delete(rules, "BROKEN") })

	_, err := Lookup("broken")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))
}

func TestFromSnapshotSkipsMalformedRule(t *testing.T) {
	_, ok := FromSnapshot(&models.CouponSnapshot{Code: "X", Type: enums.DiscountTypeFixed, Value: dec("-5")})
	assert.False(t, ok)

	_, ok = FromSnapshot(&models.CouponSnapshot{Code: "X", Type: "bogus", Value: dec("5")})
	assert.False(t, ok)
}
