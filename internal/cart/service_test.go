package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/commerce-engine/internal/catalog"
	"github.com/angelmondragon/commerce-engine/pkg/db"
	"github.com/angelmondragon/commerce-engine/pkg/db/dbtest"
	"github.com/angelmondragon/commerce-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/types"
)

type fixture struct {
	conn    *gorm.DB
	svc     Service
	cache   *memoryCache
	now     time.Time
	product models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{conn: conn, cache: newMemoryCache(), now: testNow}
	f.product = models.Product{
		Title:          "Mug",
		ImageRef:       "img/mug.png",
		Price:          decimal.RequireFromString("12.50"),
		StockQty:       10,
		TrackInventory: true,
		IsActive:       true,
	}
	require.NoError(t, conn.Create(&f.product).Error)

	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      db.Wrap(conn),
		Catalog: catalog.NewRepository(conn),
		Cache:   f.cache,
		TTL:     24 * time.Hour,
		Now:     func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestServiceGetWithoutCartIsEmpty(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.Get(context.Background(), "shopper-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.TotalPrice.IsZero())

	var count int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Count(&count).Error)
	assert.Zero(t, count, "reading must not create a cart")
}

func TestServiceAddItemCreatesCartAndSnapshotsProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Mug", view.Items[0].Name)
	assert.True(t, view.Subtotal.Equal(decimal.RequireFromString("25.00")))
	require.NotNil(t, view.ExpiresAt)
	assert.True(t, view.ExpiresAt.Equal(testNow.Add(24*time.Hour)))

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.product.ID).
		Update("price", decimal.RequireFromString("99.00")).Error)

	view, err = f.svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	assert.True(t, view.Items[0].UnitPrice.Equal(decimal.RequireFromString("12.50")), "price captured at add time")

	var product models.Product
	require.NoError(t, f.conn.First(&product, "id = ?", f.product.ID).Error)
	assert.Equal(t, 10, product.StockQty, "cart never touches stock")
}

func TestServiceAddItemUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddItem(context.Background(), "shopper-1", AddItemInput{ProductID: uuid.New(), Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceSetQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variants := types.Variants{{Name: "size", Value: "L"}}

	_, err := f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 1, Variants: variants})
	require.NoError(t, err)

	view, err := f.svc.SetQuantity(ctx, "shopper-1", SetQuantityInput{ProductID: f.product.ID, Variants: variants, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalItems)

	view, err = f.svc.RemoveItem(ctx, "shopper-1", f.product.ID, variants)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	view, err = f.svc.SetQuantity(ctx, "shopper-1", SetQuantityInput{ProductID: f.product.ID, Variants: variants, Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = f.svc.SetQuantity(ctx, "nobody", SetQuantityInput{ProductID: f.product.ID, Quantity: 2})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceCouponLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyCoupon(ctx, "shopper-1", "SAVE10")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon), "no cart yet")

	_, err = f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 8})
	require.NoError(t, err)

	view, err := f.svc.ApplyCoupon(ctx, "shopper-1", "save10")
	require.NoError(t, err)
	assert.True(t, view.Subtotal.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, view.TotalPrice.Equal(decimal.RequireFromString("90.00")))

	_, err = f.svc.ApplyCoupon(ctx, "shopper-1", "NOPE")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))

	view, err = f.svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	require.NotNil(t, view.Coupon)
	assert.Equal(t, "SAVE10", view.Coupon.Code)

	view, err = f.svc.RemoveCoupon(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Nil(t, view.Coupon)
	assert.True(t, view.TotalPrice.Equal(view.Subtotal))
}

func TestServiceClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 2})
	require.NoError(t, err)

	view, err := f.svc.Clear(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	var items int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestServiceMutationInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	_, cached := f.cache.Get(ctx, "shopper-1")
	assert.True(t, cached)

	_, err = f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 1})
	require.NoError(t, err)
	_, cached = f.cache.Get(ctx, "shopper-1")
	assert.False(t, cached)

	view, err := f.svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)
}

func TestServiceExpiredCartReadsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 1})
	require.NoError(t, err)

	f.now = f.now.Add(48 * time.Hour)
	f.cache.flush()
	view, err := f.svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	view, err = f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalItems, "expired lines are dropped before the mutation")
}

func TestServiceConcurrentAddsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var carts int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Count(&carts).Error)
	assert.Equal(t, int64(1), carts)

	view, err := f.svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Equal(t, workers, view.TotalItems)
}

// readHookRepo runs onRead once, right after the first unlocked cart read.
type readHookRepo struct {
	CartRepository
	once   sync.Once
	onRead func()
}

func (r *readHookRepo) FindByShopper(ctx context.Context, shopperID string, forUpdate bool) (*models.Cart, error) {
	cart, err := r.CartRepository.FindByShopper(ctx, shopperID, forUpdate)
	if !forUpdate {
		r.once.Do(r.onRead)
	}
	return cart, err
}

func TestServiceGetNeverCachesViewOlderThanConcurrentClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, "shopper-1", AddItemInput{ProductID: f.product.ID, Quantity: 2})
	require.NoError(t, err)
	f.cache.flush()

	var svc Service
	cleared := make(chan error, 1)
	repo := &readHookRepo{CartRepository: NewRepository(f.conn)}
	repo.onRead = func() {
		go func() {
			_, err := svc.Clear(ctx, "shopper-1")
			cleared <- err
		}()
		// Give the clear every chance to commit before Get fills the cache.
		time.Sleep(50 * time.Millisecond)
	}
	svc, err = NewService(ServiceParams{
		Repo:    repo,
		Tx:      db.Wrap(f.conn),
		Catalog: catalog.NewRepository(f.conn),
		Cache:   f.cache,
		TTL:     24 * time.Hour,
		Now:     func() time.Time { return f.now },
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	require.NoError(t, <-cleared)

	view, err := svc.Get(ctx, "shopper-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items, "cached view must match the stored cart")

	var items int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestServiceRejectsBlankShopper(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type memoryCache struct {
	mu    sync.Mutex
	views map[string]*View
}

func newMemoryCache() *memoryCache {
	return &memoryCache{views: map[string]*View{}}
}

func (m *memoryCache) Get(_ context.Context, shopperID string) (*View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, ok := m.views[shopperID]
	return view, ok
}

func (m *memoryCache) Set(_ context.Context, view *View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[view.ShopperID] = view
}

func (m *memoryCache) Invalidate(_ context.Context, shopperID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, shopperID)
}

func (m *memoryCache) flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = map[string]*View{}
}
