// Package cart owns the per-shopper basket: pure mutations on models.Cart, a
// gorm repository, per-shopper locking and a cache of rendered views.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/internal/catalog"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

const defaultTTL = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the shopper-facing cart operations.
type Service interface {
	Get(ctx context.Context, shopperID string) (*View, error)
	AddItem(ctx context.Context, shopperID string, input AddItemInput) (*View, error)
	SetQuantity(ctx context.Context, shopperID string, input SetQuantityInput) (*View, error)
	RemoveItem(ctx context.Context, shopperID string, productID uuid.UUID, variants types.Variants) (*View, error)
	ApplyCoupon(ctx context.Context, shopperID, code string) (*View, error)
	RemoveCoupon(ctx context.Context, shopperID string) (*View, error)
	Clear(ctx context.Context, shopperID string) (*View, error)
}

// AddItemInput adds Quantity units of a product with the selected variants.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Variants  types.Variants
}

// SetQuantityInput sets the quantity of the line identified by product and variants.
type SetQuantityInput struct {
	ProductID uuid.UUID
	Variants  types.Variants
	Quantity  int
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo    CartRepository
	Tx      txRunner
	Catalog catalog.Reader
	Locker  Locker
	Cache   Cache
	Logger  *logger.Logger
	TTL     time.Duration
	Now     func() time.Time
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog catalog.Reader
	locker  Locker
	cache   Cache
	logg    *logger.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	svc := &service{
		repo:    params.Repo,
		tx:      params.Tx,
		catalog: params.Catalog,
		locker:  params.Locker,
		cache:   params.Cache,
		logg:    params.Logger,
		ttl:     params.TTL,
		now:     params.Now,
	}
	if svc.locker == nil {
		svc.locker = NewKeyedMutex()
	}
	if svc.cache == nil {
		svc.cache = NopCache{}
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.ttl <= 0 {
		svc.ttl = defaultTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Get(ctx context.Context, shopperID string) (*View, error) {
	shopperID, err := normalizeShopper(shopperID)
	if err != nil {
		return nil, err
	}
	if view, ok := s.cache.Get(ctx, shopperID); ok {
		return view, nil
	}

	// Fill under the shopper lock: mutations invalidate before releasing it,
	// so a view rendered here can never outlive a later commit.
	unlock, err := s.locker.Lock(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if view, ok := s.cache.Get(ctx, shopperID); ok {
		return view, nil
	}
	cart, err := s.repo.FindByShopper(ctx, shopperID, false)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		cart = nil
	}
	if Expired(cart, s.now()) {
		cart = nil
	}
	view := NewView(shopperID, cart)
	if cart != nil {
		s.cache.Set(ctx, view)
	}
	return view, nil
}

func (s *service) AddItem(ctx context.Context, shopperID string, input AddItemInput) (*View, error) {
	if input.Quantity < 1 {
		return nil, quantityOutOfRange(input.ProductID, input.Quantity)
	}
	snap, err := s.catalog.Snapshot(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	view, err := s.mutate(ctx, shopperID, true, func(cart *models.Cart, now time.Time) error {
		return AddItem(cart, snap, input.Quantity, input.Variants, now)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithProductID(ctx, input.ProductID.String()), map[string]any{
		"shopper_id": view.ShopperID,
		"quantity":   input.Quantity,
	}), "cart.item_added")
	return view, nil
}

func (s *service) SetQuantity(ctx context.Context, shopperID string, input SetQuantityInput) (*View, error) {
	return s.mutate(ctx, shopperID, false, func(cart *models.Cart, _ time.Time) error {
		return SetQuantity(cart, input.ProductID, input.Variants, input.Quantity)
	})
}

func (s *service) RemoveItem(ctx context.Context, shopperID string, productID uuid.UUID, variants types.Variants) (*View, error) {
	return s.mutate(ctx, shopperID, false, func(cart *models.Cart, _ time.Time) error {
		RemoveItem(cart, productID, variants)
		return nil
	})
}

func (s *service) ApplyCoupon(ctx context.Context, shopperID, code string) (*View, error) {
	view, err := s.mutate(ctx, shopperID, false, func(cart *models.Cart, _ time.Time) error {
		return ApplyCoupon(cart, code)
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"shopper_id":  view.ShopperID,
		"coupon_code": view.Coupon.Code,
	}), "cart.coupon_applied")
	return view, nil
}

func (s *service) RemoveCoupon(ctx context.Context, shopperID string) (*View, error) {
	return s.mutate(ctx, shopperID, false, func(cart *models.Cart, _ time.Time) error {
		RemoveCoupon(cart)
		return nil
	})
}

func (s *service) Clear(ctx context.Context, shopperID string) (*View, error) {
	return s.mutate(ctx, shopperID, false, func(cart *models.Cart, _ time.Time) error {
		Clear(cart)
		return nil
	})
}

// mutate runs fn against the locked cart of shopperID inside a transaction and
// persists the result. When the shopper has no cart, fn receives nil unless
// create is set, in which case an empty cart is created first.
func (s *service) mutate(ctx context.Context, shopperID string, create bool, fn func(*models.Cart, time.Time) error) (*View, error) {
	shopperID, err := normalizeShopper(shopperID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, shopperID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.Cart
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		cart, err := s.loadForUpdate(ctx, repo, shopperID, create, now)
		if err != nil {
			return err
		}
		if Expired(cart, now) {
			Clear(cart)
		}
		if err := fn(cart, now); err != nil {
			return err
		}
		if cart == nil {
			return nil
		}
		Touch(cart, now, s.ttl)
		if err := repo.Save(ctx, cart); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, shopperID)
	return NewView(shopperID, result), nil
}

func (s *service) loadForUpdate(ctx context.Context, repo CartRepository, shopperID string, create bool, now time.Time) (*models.Cart, error) {
	cart, err := repo.FindByShopper(ctx, shopperID, true)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if !create {
		return nil, nil
	}
	fresh := New(shopperID, now, s.ttl)
	created, err := repo.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	if created {
		return fresh, nil
	}
	cart, err = repo.FindByShopper(ctx, shopperID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return cart, nil
}

func normalizeShopper(shopperID string) (string, error) {
	shopperID = strings.TrimSpace(shopperID)
	if shopperID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	return shopperID, nil
}
