package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/internal/cart"
	"github.com/angelmondragon/commerce-engine/internal/inventory"
	"github.com/angelmondragon/commerce-engine/internal/orders"
	"github.com/angelmondragon/commerce-engine/pkg/db"
	"github.com/angelmondragon/commerce-engine/pkg/db/dbtest"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	"github.com/angelmondragon/commerce-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/metrics"
	"github.com/angelmondragon/commerce-engine/pkg/outbox"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type invalidations struct {
	mu      sync.Mutex
	shopper []string
}

func (c *invalidations) Get(context.Context, string) (*cart.View, bool) { return nil, false }
func (c *invalidations) Set(context.Context, *cart.View)                {}
func (c *invalidations) Invalidate(_ context.Context, shopperID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shopper = append(c.shopper, shopperID)
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	ledger   *inventory.Repository
	orders   orders.Repository
	cache    *invalidations
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCommerceMetrics(reg)
	f := &fixture{
		conn:     conn,
		ledger:   inventory.NewRepository(conn, m),
		orders:   orders.NewRepository(conn),
		cache:    &invalidations{},
		registry: reg,
	}
	svc, err := NewService(ServiceParams{
		Tx:      db.Wrap(conn),
		Carts:   cart.NewRepository(conn),
		Orders:  f.orders,
		Ledger:  f.ledger,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Cache:   f.cache,
		Metrics: m,
		Pricing: DefaultPricing(),
		CartTTL: 24 * time.Hour,
		Now:     func() time.Time { return testNow },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) product(t *testing.T, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Title:          "Product " + price,
		ImageRef:       "img/" + price,
		Price:          decimal.RequireFromString(price),
		StockQty:       stock,
		TrackInventory: true,
		IsActive:       true,
	}
	require.NoError(t, f.conn.Create(&p).Error)
	return p
}

type cartLine struct {
	product models.Product
	qty     int
}

func (f *fixture) cart(t *testing.T, shopperID string, coupon *models.CouponSnapshot, lines ...cartLine) {
	t.Helper()
	c := &models.Cart{ShopperID: shopperID, Coupon: coupon, ExpiresAt: testNow.Add(24 * time.Hour)}
	for i, l := range lines {
		c.Items = append(c.Items, models.CartItem{
			ProductID: l.product.ID,
			Name:      l.product.Title,
			ImageRef:  l.product.ImageRef,
			UnitPrice: l.product.Price,
			Quantity:  l.qty,
			Position:  i,
			AddedAt:   testNow,
		})
	}
	require.NoError(t, f.conn.Create(c).Error)
}

func (f *fixture) stock(t *testing.T, productID uuid.UUID) inventory.StockRecord {
	t.Helper()
	rec, err := f.ledger.Get(context.Background(), productID)
	require.NoError(t, err)
	return rec
}

func (f *fixture) cartItems(t *testing.T, shopperID string) []models.CartItem {
	t.Helper()
	c, err := cart.NewRepository(f.conn).FindByShopper(context.Background(), shopperID, false)
	require.NoError(t, err)
	return c.Items
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func validInput() Input {
	return Input{
		ShippingAddress: types.ShippingAddress{Name: "Ada", Phone: "555", Street: "1 Loop", City: "Austin", State: "TX", ZipCode: "78701"},
		PaymentMethod:   enums.PaymentMethodCard,
	}
}

func TestCheckoutReservesAndFreezesOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "12.50", 5)
	f.cart(t, "shopper-1", nil, cartLine{p, 3})

	order, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.NoError(t, err)

	rec := f.stock(t, p.ID)
	assert.Equal(t, 2, rec.Stock)
	assert.Equal(t, 3, rec.Sold)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, models.OrderNumberFor(order.ID), order.OrderNumber)
	assertMoney(t, "37.50", order.ItemsPrice)
	assertMoney(t, "3.00", order.TaxPrice)
	assertMoney(t, "5.99", order.ShippingPrice)
	assertMoney(t, "46.49", order.TotalPrice)
	assert.Equal(t, "USA", order.ShippingAddress.Country)

	assert.Empty(t, f.cartItems(t, "shopper-1"))
	assert.Equal(t, []string{"shopper-1"}, f.cache.shopper)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventOrderCreated).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].AggregateID)
}

func TestCheckoutInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "9.00", 2)
	f.cart(t, "shopper-1", nil, cartLine{p, 3})

	_, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, map[string]any{"product_id": p.ID.String(), "requested": 3, "available": 2}, pkgerrors.As(err).Details())

	assert.Equal(t, 2, f.stock(t, p.ID).Stock)
	items := f.cartItems(t, "shopper-1")
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}))
	count, err := testutil.GatherAndCount(f.registry, "commerce_checkout_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckoutRollsBackEarlierReservations(t *testing.T) {
	f := newFixture(t)
	plenty := f.product(t, "4.00", 5)
	scarce := f.product(t, "6.00", 1)
	f.cart(t, "shopper-1", nil, cartLine{plenty, 2}, cartLine{scarce, 2})

	_, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	assert.Equal(t, inventory.StockRecord{ProductID: plenty.ID, Stock: 5, Sold: 0, TrackInventory: true}, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID).Stock)
}

func TestCheckoutRejectsEmptyCartAndBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.cart(t, "shopper-2", nil)
	_, err = f.svc.Checkout(context.Background(), "shopper-2", validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input := validInput()
	input.ShippingAddress.City = " "
	_, err = f.svc.Checkout(context.Background(), "shopper-1", input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]any{"missing": []string{"city"}}, pkgerrors.As(err).Details())

	input = validInput()
	input.PaymentMethod = "barter"
	_, err = f.svc.Checkout(context.Background(), "shopper-1", input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(context.Background(), "", validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestCheckoutRejectsExpiredCart(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "5.00", 5)
	c := &models.Cart{
		ShopperID: "shopper-1",
		ExpiresAt: testNow.Add(-time.Minute),
		Items:     []models.CartItem{{ProductID: p.ID, Name: p.Title, UnitPrice: p.Price, Quantity: 1, AddedAt: testNow}},
	}
	require.NoError(t, f.conn.Create(c).Error)

	_, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 5, f.stock(t, p.ID).Stock)
}

func TestCheckoutAppliesCouponSnapshot(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "100.00", 3)
	coupon := &models.CouponSnapshot{Code: "SAVE10", Type: enums.DiscountTypePercentage, Value: decimal.NewFromInt(10)}
	f.cart(t, "shopper-1", coupon, cartLine{p, 1})

	order, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.NoError(t, err)
	assertMoney(t, "0", order.ShippingPrice)
	assertMoney(t, "10.80", order.DiscountPrice)
	assertMoney(t, "97.20", order.TotalPrice)
	require.NotNil(t, order.Coupon)
	assert.Equal(t, "SAVE10", order.Coupon.Code)

	c, err := cart.NewRepository(f.conn).FindByShopper(context.Background(), "shopper-1", false)
	require.NoError(t, err)
	assert.Nil(t, c.Coupon)
}

func TestOrderTotalsIgnoreLaterCatalogChanges(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "20.00", 5)
	f.cart(t, "shopper-1", nil, cartLine{p, 2})

	order, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", p.ID).
		Updates(map[string]any{"price": decimal.RequireFromString("99.00"), "title": "Renamed"}).Error)

	stored, err := f.orders.FindByID(context.Background(), order.ID, false)
	require.NoError(t, err)
	assert.True(t, stored.TotalPrice.Equal(order.TotalPrice))
	assertMoney(t, "20.00", stored.Items[0].UnitPrice)
	assert.Equal(t, p.Title, stored.Items[0].Name)
	assert.True(t, stored.TotalPrice.Equal(stored.ItemsPrice.Add(stored.TaxPrice).Add(stored.ShippingPrice).Sub(stored.DiscountPrice)))
}

func TestCheckoutThenCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "3.00", 7)
	b := f.product(t, "8.00", 4)
	before := []inventory.StockRecord{f.stock(t, a.ID), f.stock(t, b.ID)}
	f.cart(t, "shopper-1", nil, cartLine{a, 5}, cartLine{b, 4})

	order, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, b.ID).Stock)

	cancelled, err := f.svc.Cancel(context.Background(), orders.Actor{UserID: "shopper-1", Role: enums.UserRoleShopper}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	assert.Equal(t, before, []inventory.StockRecord{f.stock(t, a.ID), f.stock(t, b.ID)})

	_, err = f.svc.Cancel(context.Background(), orders.Actor{UserID: "shopper-1", Role: enums.UserRoleShopper}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, before[0], f.stock(t, a.ID))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventOrderCancelled).Find(&events).Error)
	assert.Len(t, events, 1)
}

func TestCancelShippedOrderIsRejected(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "10.00", 5)
	f.cart(t, "shopper-1", nil, cartLine{p, 3})
	order, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusShipped).Error)

	_, err = f.svc.Cancel(context.Background(), orders.Actor{UserID: "admin", Role: enums.UserRoleAdmin}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, 2, f.stock(t, p.ID).Stock)
}

func TestCancelHidesOtherShoppersOrders(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "10.00", 5)
	f.cart(t, "shopper-1", nil, cartLine{p, 1})
	order, err := f.svc.Checkout(context.Background(), "shopper-1", validInput())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), orders.Actor{UserID: "shopper-2", Role: enums.UserRoleShopper}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Cancel(context.Background(), orders.Actor{UserID: "shopper-1"}, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Cancel(context.Background(), orders.Actor{UserID: "admin", Role: enums.UserRoleAdmin}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, f.stock(t, p.ID).Stock)
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "15.00", 1)
	const shoppers = 6
	for i := 0; i < shoppers; i++ {
		f.cart(t, fmt.Sprintf("shopper-%d", i), nil, cartLine{p, 1})
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Checkout(context.Background(), fmt.Sprintf("shopper-%d", i), validInput())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, shoppers-1, insufficient)
	rec := f.stock(t, p.ID)
	assert.Equal(t, 0, rec.Stock)
	assert.Equal(t, 1, rec.Sold)
	assert.Equal(t, int64(1), f.count(t, &models.Order{}))
}

func TestConcurrentCheckoutsWithMemoryLedger(t *testing.T) {
	productID := uuid.New()
	ledger := inventory.NewMemoryLedger(inventory.StockRecord{ProductID: productID, Stock: 3, TrackInventory: true})

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := inventory.ReserveAll(context.Background(), ledger, nil, []inventory.Line{{ProductID: productID, Quantity: 1}})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	rec, _ := ledger.Get(productID)
	assert.Equal(t, 3, success)
	assert.Equal(t, 0, rec.Stock)
	assert.Equal(t, 3, rec.Sold)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
