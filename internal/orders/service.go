// Package orders owns the order lifecycle after checkout: reads, the status
// state machine, payment recording and admin transitions.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/internal/inventory"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
	"github.com/angelmondragon/commerce-engine/pkg/outbox/payloads"
	"github.com/angelmondragon/commerce-engine/pkg/pagination"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor is the caller behind an order operation.
type Actor struct {
	UserID string
	Role   enums.UserRole
}

// IsAdmin reports whether the actor may act on any order.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// Canceller releases an order's stock and marks it cancelled in one
// transaction. The checkout orchestrator implements it.
type Canceller interface {
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
}

// Service exposes order reads and lifecycle operations.
type Service interface {
	Get(ctx context.Context, userID string, orderID uuid.UUID, isAdmin bool) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, params pagination.Params) (pagination.Page[models.Order], error)
	ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (pagination.Page[models.Order], error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	RecordPayment(ctx context.Context, userID string, orderID uuid.UUID, result types.PaymentResult) (*models.Order, error)
}

// UpdateStatusInput is an admin-driven transition.
type UpdateStatusInput struct {
	Actor          Actor
	OrderID        uuid.UUID
	To             enums.OrderStatus
	TrackingNumber string
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo            Repository
	Tx              txRunner
	Ledger          inventory.Ledger
	Outbox          outbox.Emitter
	Canceller       Canceller
	Logger          *logger.Logger
	RestockOnRefund bool
	Now             func() time.Time
}

type service struct {
	repo            Repository
	tx              txRunner
	ledger          inventory.Ledger
	outbox          outbox.Emitter
	canceller       Canceller
	logg            *logger.Logger
	restockOnRefund bool
	now             func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	svc := &service{
		repo:            params.Repo,
		tx:              params.Tx,
		ledger:          params.Ledger,
		outbox:          params.Outbox,
		canceller:       params.Canceller,
		logg:            params.Logger,
		restockOnRefund: params.RestockOnRefund,
		now:             params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Get(ctx context.Context, userID string, orderID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID, false)
	if err != nil {
		return nil, lookupError(err)
	}
	if !isAdmin && order.UserID != userID {
		return nil, NotFound(orderID)
	}
	return order, nil
}

func (s *service) ListByUser(ctx context.Context, userID string, params pagination.Params) (pagination.Page[models.Order], error) {
	if strings.TrimSpace(userID) == "" {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	page, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return page, listError(err)
	}
	return page, nil
}

func (s *service) ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) (pagination.Page[models.Order], error) {
	if status != nil && !status.IsValid() {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": string(*status)})
	}
	page, err := s.repo.ListAll(ctx, params, status)
	if err != nil {
		return page, listError(err)
	}
	return page, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": string(input.To)})
	}
	if input.To == enums.OrderStatusCancelled {
		return s.canceller.Cancel(ctx, input.Actor, input.OrderID)
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID, true)
		if err != nil {
			return lookupError(err)
		}

		effect, err := Apply(order, StatusChange{To: input.To, TrackingNumber: input.TrackingNumber, At: s.now()})
		if err != nil {
			return err
		}

		restock := effect.ReleaseStock || (s.restockOnRefund && effect.NeverShipped)
		if restock {
			if err := inventory.ReleaseAll(ctx, s.ledger, tx, StockLines(order)); err != nil {
				return err
			}
		}

		if err := repo.SaveStatus(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		tracking := ""
		if order.TrackingNumber != nil {
			tracking = *order.TrackingNumber
		}
		updated = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(input.Actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				From:           effect.From,
				To:             effect.To,
				TrackingNumber: tracking,
				Restocked:      restock,
				ChangedAt:      order.UpdatedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, updated.ID.String()), map[string]any{
		"status":       string(updated.Status),
		"order_number": updated.OrderNumber,
	})
	s.logg.Info(ctx, "order.status_changed")
	return updated, nil
}

func (s *service) RecordPayment(ctx context.Context, userID string, orderID uuid.UUID, result types.PaymentResult) (*models.Order, error) {
	if strings.TrimSpace(result.ID) == "" || strings.TrimSpace(result.Status) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment result requires id and status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, true)
		if err != nil {
			return lookupError(err)
		}
		if order.UserID != userID {
			return NotFound(orderID)
		}
		switch order.Status {
		case enums.OrderStatusCancelled, enums.OrderStatusRefunded:
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot record payment on a %s order", order.Status)).
				WithDetails(map[string]any{"status": string(order.Status)})
		}
		if order.PaymentStatus.Settled() {
			if order.PaymentResult != nil && order.PaymentResult.ID == result.ID {
				updated = order
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
		}

		stored := result
		order.PaymentResult = &stored
		order.PaymentStatus = enums.PaymentStatusFailed
		if result.Succeeded() {
			order.PaymentStatus = enums.PaymentStatusPaid
		}
		order.UpdatedAt = s.now().UTC()

		if err := repo.SaveStatus(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}
		updated = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(Actor{UserID: userID, Role: enums.UserRoleShopper}),
			Data: payloads.OrderPaymentRecordedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				PaymentStatus: order.PaymentStatus,
				ProviderRef:   result.ID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, updated.ID.String()), "payment_status", string(updated.PaymentStatus)), "order.payment_recorded")
	return updated, nil
}

// StockLines converts frozen order lines into ledger lines.
func StockLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// EventLines converts frozen order lines into event payload lines.
func EventLines(order *models.Order) []payloads.OrderLine {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return lines
}

// NotFound is returned for missing orders and for orders the caller may not see.
func NotFound(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"order_id": orderID.String()})
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func listError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
}

func actorRef(a Actor) *outbox.ActorRef {
	if a.UserID == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}
