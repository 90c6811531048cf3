// Package checkout converts a shopper's cart into an order and cancels orders,
// moving stock through the inventory ledger inside the same transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/internal/cart"
	"github.com/angelmondragon/commerce-engine/internal/inventory"
	"github.com/angelmondragon/commerce-engine/internal/orders"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/metrics"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
	"github.com/angelmondragon/commerce-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

const defaultCartTTL = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service executes checkout and cancellation.
type Service interface {
	Checkout(ctx context.Context, shopperID string, input Input) (*models.Order, error)
	Cancel(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error)
}

// Input carries the shopper supplied checkout data.
type Input struct {
	ShippingAddress types.ShippingAddress
	PaymentMethod   enums.PaymentMethod
	Notes           string
}

// ServiceParams wires the orchestrator.
type ServiceParams struct {
	Tx      txRunner
	Carts   cart.CartRepository
	Orders  orders.Repository
	Ledger  inventory.Ledger
	Outbox  outbox.Emitter
	Locker  cart.Locker
	Cache   cart.Cache
	Metrics *metrics.CommerceMetrics
	Logger  *logger.Logger
	Pricing Pricing
	CartTTL time.Duration
	Now     func() time.Time
}

type service struct {
	tx      txRunner
	carts   cart.CartRepository
	orders  orders.Repository
	ledger  inventory.Ledger
	outbox  outbox.Emitter
	locker  cart.Locker
	cache   cart.Cache
	metrics *metrics.CommerceMetrics
	logg    *logger.Logger
	pricing Pricing
	cartTTL time.Duration
	now     func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		tx:      params.Tx,
		carts:   params.Carts,
		orders:  params.Orders,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		locker:  params.Locker,
		cache:   params.Cache,
		metrics: params.Metrics,
		logg:    params.Logger,
		pricing: params.Pricing,
		cartTTL: params.CartTTL,
		now:     params.Now,
	}
	if svc.locker == nil {
		svc.locker = cart.NewKeyedMutex()
	}
	if svc.cache == nil {
		svc.cache = cart.NopCache{}
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.pricing == (Pricing{}) {
		svc.pricing = DefaultPricing()
	}
	if svc.cartTTL <= 0 {
		svc.cartTTL = defaultCartTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Checkout(ctx context.Context, shopperID string, input Input) (order *models.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveCheckout(outcomeOf(err), time.Since(started))
	}()

	shopperID = strings.TrimSpace(shopperID)
	if shopperID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	address := input.ShippingAddress.Normalized()
	if missing := address.Missing(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"payment_method": string(input.PaymentMethod)})
	}

	unlock, err := s.locker.Lock(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		now := s.now().UTC()

		basket, err := carts.FindByShopper(ctx, shopperID, true)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if basket == nil || len(basket.Items) == 0 || cart.Expired(basket, now) {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		lines := make([]inventory.Line, 0, len(basket.Items))
		for _, item := range basket.Items {
			lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := inventory.ReserveAll(ctx, s.ledger, tx, lines); err != nil {
			return err
		}

		items := freezeLines(basket.Items)
		totals := Price(items, basket.Coupon, s.pricing)
		created := &models.Order{
			ID:              uuid.New(),
			UserID:          shopperID,
			Items:           items,
			ShippingAddress: address,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusPending,
			ItemsPrice:      totals.Items,
			TaxPrice:        totals.Tax,
			ShippingPrice:   totals.Shipping,
			DiscountPrice:   totals.Discount,
			TotalPrice:      totals.Total,
			Coupon:          basket.Coupon,
			Status:          enums.OrderStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			created.Notes = &notes
		}
		if err := s.orders.WithTx(tx).Create(ctx, created); err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		cart.Clear(basket)
		cart.Touch(basket, now, s.cartTTL)
		if err := carts.Save(ctx, basket); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		couponCode := ""
		if created.Coupon != nil {
			couponCode = created.Coupon.Code
		}
		order = created
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: shopperID, Role: string(enums.UserRoleShopper)},
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:     created.ID,
				OrderNumber: created.OrderNumber,
				UserID:      shopperID,
				TotalPrice:  created.TotalPrice,
				CouponCode:  couponCode,
				Payment:     created.PaymentMethod,
				Lines:       orders.EventLines(created),
			},
		})
	})
	if err != nil {
		s.logFailure(ctx, shopperID, err)
		return nil, err
	}

	s.cache.Invalidate(ctx, shopperID)
	logCtx := s.logg.WithFields(s.logg.WithOrderID(s.logg.WithUserID(ctx, shopperID), order.ID.String()), map[string]any{
		"order_number": order.OrderNumber,
		"total_price":  order.TotalPrice.StringFixed(2),
		"line_count":   len(order.Items),
	})
	s.logg.Info(logCtx, "checkout.completed")
	return order, nil
}

func (s *service) Cancel(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (order *models.Order, err error) {
	defer func() {
		s.metrics.ObserveCancellation(outcomeOf(err))
	}()

	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		current, err := repo.FindByID(ctx, orderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orders.NotFound(orderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !actor.IsAdmin() && current.UserID != actor.UserID {
			return orders.NotFound(orderID)
		}

		effect, err := orders.Apply(current, orders.StatusChange{To: enums.OrderStatusCancelled, At: s.now()})
		if err != nil {
			return err
		}
		if effect.ReleaseStock {
			if err := inventory.ReleaseAll(ctx, s.ledger, tx, orders.StockLines(current)); err != nil {
				return err
			}
		}
		if err := repo.SaveStatus(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		order = current
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.OrderCancelledEvent{
				OrderID:       current.ID,
				OrderNumber:   current.OrderNumber,
				From:          effect.From,
				ReleasedLines: orders.EventLines(current),
				CancelledAt:   *current.CancelledAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"order_number": order.OrderNumber,
		"actor_id":     actor.UserID,
	})
	s.logg.Info(logCtx, "order.cancelled")
	return order, nil
}

func (s *service) logFailure(ctx context.Context, shopperID string, err error) {
	ctx = s.logg.WithUserID(ctx, shopperID)
	if pkgerrors.IsBusiness(err) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		if typed := pkgerrors.As(err); typed != nil {
			ctx = s.logg.WithFields(ctx, map[string]any{"code": string(typed.Code()), "details": typed.Details()})
		}
		s.logg.Warn(ctx, "checkout.rejected")
		return
	}
	s.logg.Error(ctx, "checkout.failed", err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		return metrics.OutcomeInsufficientStock
	case pkgerrors.IsBusiness(err), pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
