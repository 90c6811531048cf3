package types

import "strings"

// PaymentResult is the opaque confirmation returned by an external payment
// provider. The engine stores it verbatim and only inspects Status.
type PaymentResult struct {
	ID           string `json:"id" validate:"required,max=128"`
	Status       string `json:"status" validate:"required,max=64"`
	UpdateTime   string `json:"update_time,omitempty"`
	EmailAddress string `json:"email_address,omitempty" validate:"omitempty,email"`
}

var successfulPaymentStatuses = map[string]struct{}{
	"completed": {},
	"succeeded": {},
	"paid":      {},
	"approved":  {},
}

// Succeeded reports whether the provider status denotes a captured payment.
func (p PaymentResult) Succeeded() bool {
	_, ok := successfulPaymentStatuses[strings.ToLower(strings.TrimSpace(p.Status))]
	return ok
}
