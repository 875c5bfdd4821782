package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/storefront/internal/domain/address"
	"github.com/threadline/storefront/internal/domain/auth"
	"github.com/threadline/storefront/internal/domain/cart"
	"github.com/threadline/storefront/internal/domain/coupon"
	"github.com/threadline/storefront/internal/domain/inventory"
	"github.com/threadline/storefront/internal/domain/notification"
	"github.com/threadline/storefront/internal/domain/order"
	"github.com/threadline/storefront/internal/domain/product"
)

// --- Fakes ---

type fakeProducts struct {
	products map[string]product.Product
}

func (f *fakeProducts) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) StockLevels(_ context.Context, ids []string) (map[string]inventory.StockLevel, error) {
	levels := make(map[string]inventory.StockLevel)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			levels[id] = inventory.StockLevel{Name: p.Name, Stock: p.Stock}
		}
	}
	return levels, nil
}

type fakeCarts struct {
	mu    sync.Mutex
	items map[string][]cart.Item
}

func (f *fakeCarts) Get(_ context.Context, userID string) ([]cart.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cart.Item(nil), f.items[userID]...), nil
}

func (f *fakeCarts) Save(_ context.Context, userID string, items []cart.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[userID] = items
	return nil
}

func (f *fakeCarts) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, userID)
	return nil
}

type fakeValidator struct {
	verdict coupon.Verdict
}

func (f *fakeValidator) Validate(context.Context, string, decimal.Decimal, string) (coupon.Verdict, error) {
	return f.verdict, nil
}

type fakeOrders struct {
	mu       sync.Mutex
	orders   map[string]*order.Order
	seq      int64
	placeErr error
}

func (f *fakeOrders) Place(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return f.placeErr
	}
	f.seq++
	o.OrderNumber = order.FormatOrderNumber(1000000000 + f.seq)
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string, _ int) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status order.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

type fakeAddresses struct {
	addrs map[string]*address.Address
}

func (f *fakeAddresses) ListByUser(_ context.Context, userID string) ([]address.Address, error) {
	var out []address.Address
	for _, a := range f.addrs {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAddresses) GetByID(_ context.Context, id string) (*address.Address, error) {
	a, ok := f.addrs[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAddresses) Create(_ context.Context, a *address.Address) error {
	f.addrs[a.ID] = a
	return nil
}

func (f *fakeAddresses) Update(_ context.Context, a *address.Address) error {
	if _, ok := f.addrs[a.ID]; !ok {
		return address.ErrNotFound
	}
	f.addrs[a.ID] = a
	return nil
}

func (f *fakeAddresses) Delete(_ context.Context, _, id string) error {
	if _, ok := f.addrs[id]; !ok {
		return address.ErrNotFound
	}
	delete(f.addrs, id)
	return nil
}

func (f *fakeAddresses) SetDefault(_ context.Context, userID, id string) error {
	if _, ok := f.addrs[id]; !ok {
		return address.ErrNotFound
	}
	for _, a := range f.addrs {
		if a.UserID == userID {
			a.IsDefault = a.ID == id
		}
	}
	return nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	items map[string]*notification.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[n.ID] = n
	return nil
}

func (f *fakeNotifications) List(_ context.Context, audience notification.Audience, userID string, _ int) ([]notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification.Notification
	for _, n := range f.items {
		if n.Audience != audience {
			continue
		}
		if audience == notification.AudienceUser && n.UserID != userID {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, audience notification.Audience, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok || n.Audience != audience {
		return notification.ErrNotFound
	}
	if audience == notification.AudienceUser && n.UserID != userID {
		return notification.ErrNotFound
	}
	n.Read = true
	return nil
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.items {
		if n.Audience == notification.AudienceUser && n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.items {
		if n.Audience == notification.AudienceUser && n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

type fakeAPIKeys struct {
	hashes map[string]*auth.APIKeyInfo
}

func (f *fakeAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	return f.hashes[hash], nil
}

// --- Fixture ---

const (
	testUser   = "user-1"
	testPepper = "test-pepper"
	testAPIKey = "admin-key"
)

type fixture struct {
	handler   http.Handler
	products  *fakeProducts
	carts     *fakeCarts
	orders    *fakeOrders
	addrs     *fakeAddresses
	notifRepo *fakeNotifications
	validator *fakeValidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &fakeProducts{products: map[string]product.Product{
		"p1": {ID: "p1", Name: "Denim Jacket", Price: decimal.NewFromInt(1299), Stock: 5,
			Category: "jackets", Sizes: []string{"M", "L"}, Colors: []string{"blue"},
			Images: []string{"p1.jpg"}},
		"p2": {ID: "p2", Name: "Linen Shirt", Price: decimal.NewFromInt(500), Stock: 2,
			Category: "shirts"},
	}}
	carts := &fakeCarts{items: make(map[string][]cart.Item)}
	orders := &fakeOrders{orders: make(map[string]*order.Order)}
	addrs := &fakeAddresses{addrs: map[string]*address.Address{
		"a1": {ID: "a1", UserID: testUser, Type: "Home", Address: "12 MG Road",
			City: "Bengaluru", State: "Karnataka", Pincode: "560001", IsDefault: true},
	}}
	notifRepo := &fakeNotifications{items: make(map[string]*notification.Notification)}
	validator := &fakeValidator{verdict: coupon.Verdict{Valid: false, Message: "Invalid coupon code"}}

	hub := notification.NewHub()
	notifSvc := notification.NewService(notifRepo, hub)
	orderSvc := order.NewService(carts, addrs, validator, orders, notification.NewOrderNotifier(notifSvc))
	cartSvc := cart.NewService(carts, products)
	checker := inventory.NewChecker(products)

	keyHash := HashAPIKey([]byte(testPepper), testAPIKey)
	security := NewSecurity(&fakeAPIKeys{hashes: map[string]*auth.APIKeyInfo{
		keyHash: {ID: "k1", KeyHash: keyHash, Name: "ops"},
	}}, []byte(testPepper))

	h := NewHandler(Config{}, products, cartSvc, checker, validator, orderSvc, notifSvc, addrs, security)
	return &fixture{
		handler:   h.Routes(),
		products:  products,
		carts:     carts,
		orders:    orders,
		addrs:     addrs,
		notifRepo: notifRepo,
		validator: validator,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-ID", testUser)
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func anonymous(req *http.Request)  { req.Header.Del("X-User-ID") }
func withAPIKey(req *http.Request) { req.Header.Set("X-API-Key", testAPIKey) }

// --- Tests ---

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/products", nil, anonymous)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []productResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp, 2)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/products/nope", nil, anonymous)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCart_RequiresUser(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/cart/", nil, anonymous)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCart_AddMergesAndSubtotals(t *testing.T) {
	f := newFixture(t)

	body := addCartItemRequest{ProductID: "p1", Size: "M", Color: "blue", Quantity: 1}
	w := f.do(t, http.MethodPost, "/api/cart/items", body)
	require.Equal(t, http.StatusOK, w.Code)

	// Same key again merges into one line.
	w = f.do(t, http.MethodPost, "/api/cart/items", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp cartResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 2, resp.Items[0].Quantity)
	assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(2598)), "got %s", resp.Subtotal)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: "nope", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCart_CheckStock(t *testing.T) {
	f := newFixture(t)

	// Request more than p2's stock of 2.
	f.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: "p2", Quantity: 3})

	w := f.do(t, http.MethodPost, "/api/cart/check-stock", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report inventory.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.False(t, report.OK)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, "p2", report.Issues[0].ProductID)
	assert.Equal(t, 2, report.Issues[0].Available)
}

func TestValidateCoupon_Rejection(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/coupons/validate", validateCouponRequest{Code: "NOPE"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp validateCouponResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, "Invalid coupon code", resp.Message)
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})

	w := f.do(t, http.MethodPost, "/api/orders/", placeOrderRequest{
		AddressID: "a1",
		Email:     "shopper@example.com",
		Phone:     "9876543210",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "OD1000000001", resp.OrderNumber)
	assert.Equal(t, order.StatusProcessing, resp.Status)
	// 1299 subtotal: free shipping, GST 234, total 1533.
	assert.True(t, resp.Pricing.Total.Equal(decimal.NewFromInt(1533)), "got %s", resp.Pricing.Total)

	// Cart is cleared after checkout.
	cw := f.do(t, http.MethodGet, "/api/cart/", nil)
	var c cartResponse
	require.NoError(t, json.NewDecoder(cw.Body).Decode(&c))
	assert.Empty(t, c.Items)

	// Admin got notified.
	admins, err := f.notifRepo.List(context.Background(), notification.AudienceAdmin, "", 0)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "New order received", admins[0].Title)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/orders/", placeOrderRequest{
		AddressID: "a1",
		Phone:     "9876543210",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.orders.placeErr = &inventory.InsufficientStockError{
		ProductID: "p1", Name: "Denim Jacket", Available: 0, Requested: 1,
	}

	f.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})

	w := f.do(t, http.MethodPost, "/api/orders/", placeOrderRequest{
		AddressID: "a1",
		Phone:     "9876543210",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPlaceOrder_CouponRejected(t *testing.T) {
	f := newFixture(t)
	f.validator.verdict = coupon.Verdict{Valid: false, Message: "This coupon has expired"}

	f.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})

	w := f.do(t, http.MethodPost, "/api/orders/", placeOrderRequest{
		AddressID:  "a1",
		Phone:      "9876543210",
		CouponCode: "OLD10",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.Equal(t, "This coupon has expired", envelope["message"])
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})
	w := f.do(t, http.MethodPost, "/api/orders/", placeOrderRequest{AddressID: "a1", Phone: "9876543210"})
	require.Equal(t, http.StatusCreated, w.Code)

	var placed orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&placed))

	cw := f.do(t, http.MethodPost, "/api/orders/"+placed.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, cw.Code)

	var cancelled orderResponse
	require.NoError(t, json.NewDecoder(cw.Body).Decode(&cancelled))
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
}

func TestAdmin_RequiresAPIKey(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPatch, "/api/admin/orders/some-id/status", updateStatusRequest{Status: "Accepted"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPatch, "/api/admin/orders/some-id/status", updateStatusRequest{Status: "Accepted"},
		func(r *http.Request) { r.Header.Set("X-API-Key", "wrong") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_UpdateStatus(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: "p1", Quantity: 1})
	w := f.do(t, http.MethodPost, "/api/orders/", placeOrderRequest{AddressID: "a1", Phone: "9876543210"})
	require.Equal(t, http.StatusCreated, w.Code)

	var placed orderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&placed))

	uw := f.do(t, http.MethodPatch, "/api/admin/orders/"+placed.ID+"/status",
		updateStatusRequest{Status: "Accepted"}, withAPIKey)
	require.Equal(t, http.StatusOK, uw.Code, uw.Body.String())

	var updated orderResponse
	require.NoError(t, json.NewDecoder(uw.Body).Decode(&updated))
	assert.Equal(t, order.StatusAccepted, updated.Status)

	// Skipping a state is rejected.
	bad := f.do(t, http.MethodPatch, "/api/admin/orders/"+placed.ID+"/status",
		updateStatusRequest{Status: "Delivered"}, withAPIKey)
	assert.Equal(t, http.StatusConflict, bad.Code)

	// Customer sees the status-change notification.
	notifs, err := f.notifRepo.List(context.Background(), notification.AudienceUser, testUser, 0)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
}

func TestNotifications_MarkAllRead(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"n1", "n2"} {
		require.NoError(t, f.notifRepo.Create(context.Background(), &notification.Notification{
			ID: id, Audience: notification.AudienceUser, UserID: testUser,
			Type: notification.TypeGeneral, Title: "t", Message: "m",
		}))
	}

	w := f.do(t, http.MethodPost, "/api/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp["marked"])

	// Second call finds nothing unread.
	w = f.do(t, http.MethodPost, "/api/notifications/read-all", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 0, resp["marked"])
}

func TestNotifications_MarkReadScopedToOwner(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.notifRepo.Create(context.Background(), &notification.Notification{
		ID: "victim-n1", Audience: notification.AudienceUser, UserID: "victim",
		Type: notification.TypeGeneral, Title: "t", Message: "m",
	}))
	require.NoError(t, f.notifRepo.Create(context.Background(), &notification.Notification{
		ID: "admin-n1", Audience: notification.AudienceAdmin,
		Type: notification.TypeOrder, Title: "t", Message: "m",
	}))

	// Another user's notification looks like a missing one.
	w := f.do(t, http.MethodPost, "/api/notifications/victim-n1/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Same for an admin notification hit through the customer route.
	w = f.do(t, http.MethodPost, "/api/notifications/admin-n1/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	unread, err := f.notifRepo.CountUnread(context.Background(), "victim")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	// The owner can still flip it.
	require.NoError(t, f.notifRepo.Create(context.Background(), &notification.Notification{
		ID: "own-n1", Audience: notification.AudienceUser, UserID: testUser,
		Type: notification.TypeGeneral, Title: "t", Message: "m",
	}))
	w = f.do(t, http.MethodPost, "/api/notifications/own-n1/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// And the admin route reaches the admin inbox.
	w = f.do(t, http.MethodPost, "/api/admin/notifications/admin-n1/read", nil, withAPIKey)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAddresses_DefaultInvariant(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/addresses/", addressRequest{
		Address: "44 Park Street", City: "Kolkata", State: "West Bengal",
		Pincode: "700016", IsDefault: false,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created address.Address
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "Home", created.Type)

	dw := f.do(t, http.MethodPost, "/api/addresses/"+created.ID+"/default", nil)
	require.Equal(t, http.StatusNoContent, dw.Code)

	lw := f.do(t, http.MethodGet, "/api/addresses/", nil)
	var addrs []address.Address
	require.NoError(t, json.NewDecoder(lw.Body).Decode(&addrs))

	defaults := 0
	for _, a := range addrs {
		if a.IsDefault {
			defaults++
			assert.Equal(t, created.ID, a.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestAddresses_ValidationError(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/addresses/", addressRequest{City: "Pune"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
