package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

// transitions lists every legal edge. Anything missing is rejected.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusRefunded},
}

// StatusChange is a requested move of an order to a new status.
type StatusChange struct {
	To             enums.OrderStatus
	TrackingNumber string
	At             time.Time
}

// Effect reports what a successful transition means for stock and payment.
type Effect struct {
	From enums.OrderStatus
	To   enums.OrderStatus
	// ReleaseStock is set when the frozen lines must go back to the ledger.
	ReleaseStock bool
	// NeverShipped is set on refunds of orders that never left the warehouse.
	NeverShipped bool
}

// Transition reports whether from may move to to.
func Transition(from, to enums.OrderStatus) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return invalidTransition(from, to)
}

// Apply validates change against the order's current status and mutates the
// order in place. The order is left untouched on error.
func Apply(order *models.Order, change StatusChange) (Effect, error) {
	if order == nil {
		return Effect{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	from := order.Status
	if err := Transition(from, change.To); err != nil {
		return Effect{}, err
	}

	tracking := strings.TrimSpace(change.TrackingNumber)
	if change.To == enums.OrderStatusShipped && tracking == "" {
		return Effect{}, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required to ship an order").
			WithDetails(map[string]any{"field": "tracking_number"})
	}

	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	effect := Effect{From: from, To: change.To}
	switch change.To {
	case enums.OrderStatusShipped:
		order.TrackingNumber = &tracking
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &at
	case enums.OrderStatusCancelled:
		order.CancelledAt = &at
		effect.ReleaseStock = true
	case enums.OrderStatusRefunded:
		order.RefundedAt = &at
		order.PaymentStatus = enums.PaymentStatusRefunded
		effect.NeverShipped = from == enums.OrderStatusPending || from == enums.OrderStatusProcessing
	}
	order.Status = change.To
	order.UpdatedAt = at
	return effect, nil
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": string(from), "to": string(to)})
}
