package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is the shopper-selected way of paying for an order.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodBankTransfer   PaymentMethod = "bank-transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash-on-delivery"
)

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodCard, PaymentMethodPayPal, PaymentMethodBankTransfer, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

// ParsePaymentMethod accepts the wire names case-insensitively; underscores
// are read as hyphens so "cash_on_delivery" also parses.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-"))
	if !m.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return m, nil
}

// PaymentStatus records the financial state of an order independently of
// fulfillment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Settled reports whether money has been captured and not returned.
func (p PaymentStatus) Settled() bool {
	return p == PaymentStatusPaid
}
