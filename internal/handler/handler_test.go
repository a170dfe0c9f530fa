package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/identity"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/payment"
	"storefront/internal/service"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCartStore is a mock implementation of CartStore.
type MockCartStore struct {
	mock.Mock
}

func (m *MockCartStore) IsAuthenticated() bool {
	return m.Called().Bool(0)
}

func (m *MockCartStore) Snapshot() cart.Snapshot {
	return m.Called().Get(0).(cart.Snapshot)
}

func (m *MockCartStore) SyncedSnapshot(ctx context.Context) (cart.Snapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(cart.Snapshot), args.Error(1)
}

func (m *MockCartStore) Credentials(ctx context.Context) (identity.Credentials, error) {
	args := m.Called(ctx)
	return args.Get(0).(identity.Credentials), args.Error(1)
}

func (m *MockCartStore) ClearCart(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCartStore) PurgeEphemeral(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockCartStore) InitializeCart(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockCartStore) AddToCart(ctx context.Context, in cart.AddItemInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockCartStore) UpdateQuantity(ctx context.Context, ref string, quantity int) error {
	return m.Called(ctx, ref, quantity).Error(0)
}

func (m *MockCartStore) RemoveFromCart(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *MockCartStore) UpdateItemCustomizations(ctx context.Context, ref string, customizations []model.CartItemCustomization) error {
	return m.Called(ctx, ref, customizations).Error(0)
}

func (m *MockCartStore) SetDeliveryType(ctx context.Context, t model.DeliveryType) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockCartStore) SetDeliveryOption(ctx context.Context, optionID string) error {
	return m.Called(ctx, optionID).Error(0)
}

func (m *MockCartStore) SetDeliveryAddress(ctx context.Context, address string) {
	m.Called(ctx, address)
}

func (m *MockCartStore) FetchDeliveryOptions(ctx context.Context) ([]model.DeliveryOption, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeliveryOption), args.Error(1)
}

func (m *MockCartStore) ApplyCoupon(ctx context.Context, code, locale string) cart.CouponResult {
	return m.Called(ctx, code, locale).Get(0).(cart.CouponResult)
}

func (m *MockCartStore) RemoveCoupon(ctx context.Context) {
	m.Called(ctx)
}

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, c service.CartSession, req service.CheckoutRequest) (*model.OrderResult, error) {
	args := m.Called(ctx, c, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResult), args.Error(1)
}

func (m *MockOrderService) History(ctx context.Context, c service.CartSession) ([]model.Order, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Create(ctx context.Context, req payment.CardRequest) (*payment.Payment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockGateway) Get(ctx context.Context, id string) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

var testVisitor = middleware.Visitor{ID: "3f7a1c2e-0000-4000-8000-000000000001", Locale: "en"}

// sourceOf returns a StoreSource that always hands out store.
func sourceOf(store CartStore) StoreSource {
	return func(context.Context, middleware.Visitor) CartStore { return store }
}

func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.WithVisitor(req.Context(), testVisitor))
}

func decodeResponse[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func cartWithItems(n int) cart.Snapshot {
	snap := cart.Snapshot{CartState: model.NewCartState(), IsInitialized: true}
	snap.ID = "cart-1"
	for i := 0; i < n; i++ {
		snap.Items = append(snap.Items, model.CartItem{ID: "item-1", Key: "prod-1", ProductID: "prod-1", Price: 100, Quantity: 1})
	}
	snap.Subtotal = float64(100 * n)
	snap.TotalItems = n
	snap.TotalPrice = float64(100 * n)
	return snap
}
