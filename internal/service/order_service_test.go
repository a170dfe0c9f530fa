package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/identity"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderAPI is a mock implementation of OrderAPI.
type MockOrderAPI struct {
	mock.Mock
}

func (m *MockOrderAPI) CreateOrder(ctx context.Context, creds identity.Credentials, req model.OrderRequest) (*backend.Order, error) {
	args := m.Called(ctx, creds, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Order), args.Error(1)
}

func (m *MockOrderAPI) ListOrders(ctx context.Context, creds identity.Credentials) ([]backend.Order, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]backend.Order), args.Error(1)
}

// MockCartSession is a mock implementation of CartSession.
type MockCartSession struct {
	mock.Mock
}

func (m *MockCartSession) IsAuthenticated() bool {
	return m.Called().Bool(0)
}

func (m *MockCartSession) SyncedSnapshot(ctx context.Context) (cart.Snapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(cart.Snapshot), args.Error(1)
}

func (m *MockCartSession) Credentials(ctx context.Context) (identity.Credentials, error) {
	args := m.Called(ctx)
	return args.Get(0).(identity.Credentials), args.Error(1)
}

func (m *MockCartSession) ClearCart(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCartSession) PurgeEphemeral(ctx context.Context) {
	m.Called(ctx)
}

var userCreds = identity.Credentials{Token: "tok"}

func syncedCart() cart.Snapshot {
	return cart.Snapshot{
		CartState: model.CartState{
			ID:                     "cart-1",
			Items:                  []model.CartItem{{ID: "item-1", ProductID: "prod-1", Price: 100, Quantity: 2}},
			DeliveryType:           model.DeliveryHome,
			DeliveryCost:           20,
			SelectedDeliveryOption: &model.DeliveryOption{ID: "delivery-0", Name: "Express", Cost: 20},
			DeliveryAddress:        "King Fahd Rd, Riyadh",
			AppliedCoupon:          &model.AppliedCoupon{ID: "coupon-1", Code: "SAVE30", Discount: 30},
			CouponDiscount:         30,
			Subtotal:               200,
			TotalItems:             2,
			TotalPrice:             190,
		},
		IsInitialized: true,
		IsLoggedIn:    true,
	}
}

func TestOrderService_CreateOrder_Success(t *testing.T) {
	ctx := context.Background()
	api := new(MockOrderAPI)
	session := new(MockCartSession)
	paymentID := "pay_123"
	couponID := "coupon-1"

	session.On("IsAuthenticated").Return(true)
	session.On("SyncedSnapshot", ctx).Return(syncedCart(), nil)
	session.On("Credentials", ctx).Return(userCreds, nil)
	session.On("ClearCart", ctx).Return(nil)
	session.On("PurgeEphemeral", ctx).Return()

	expected := model.OrderRequest{
		CartID:          "cart-1",
		PaymentMethod:   model.PaymentCard,
		GoogleAddress:   "King Fahd Rd, Riyadh",
		DeliveryEnabled: true,
		DeliveryFee:     20,
		CouponID:        &couponID,
		Locale:          "en",
		PaymentID:       &paymentID,
	}
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	api.On("CreateOrder", ctx, userCreds, expected).Return(&backend.Order{
		ID:          "order-1",
		Status:      "pending",
		TotalAmount: decimal.NewNullDecimal(decimal.NewFromInt(190)),
		DeliveryFee: decimal.NewNullDecimal(decimal.NewFromInt(20)),
		CreatedAt:   createdAt,
	}, nil)

	svc := NewOrderService(api, zerolog.Nop())
	result, err := svc.CreateOrder(ctx, session, CheckoutRequest{
		PaymentMethod: model.PaymentCard,
		PaymentID:     &paymentID,
		Locale:        "en",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "order-1", result.OrderID)
	require.NotNil(t, result.Order)
	assert.Equal(t, 190.0, result.Order.Total)
	assert.Equal(t, createdAt, result.Order.CreatedAt)
	api.AssertExpectations(t)
	session.AssertExpectations(t)
}

func TestOrderService_CreateOrder_CompanyPickupDefaults(t *testing.T) {
	ctx := context.Background()
	api := new(MockOrderAPI)
	session := new(MockCartSession)

	snap := syncedCart()
	snap.DeliveryType = model.DeliveryCompany
	snap.DeliveryCost = 0
	snap.SelectedDeliveryOption = nil
	snap.AppliedCoupon = nil

	session.On("IsAuthenticated").Return(true)
	session.On("SyncedSnapshot", ctx).Return(snap, nil)
	session.On("Credentials", ctx).Return(userCreds, nil)
	session.On("ClearCart", ctx).Return(nil)
	session.On("PurgeEphemeral", ctx).Return()

	api.On("CreateOrder", ctx, userCreds, mock.MatchedBy(func(req model.OrderRequest) bool {
		return req.GoogleAddress == model.CompanyPickupAddress &&
			!req.DeliveryEnabled &&
			req.DeliveryFee == 0 &&
			req.CouponID == nil &&
			req.PaymentID == nil &&
			req.Locale == model.DefaultLocale
	})).Return(&backend.Order{ID: "order-2"}, nil)

	result, err := NewOrderService(api, zerolog.Nop()).CreateOrder(ctx, session, CheckoutRequest{
		PaymentMethod: model.PaymentCashOnDelivery,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	api.AssertExpectations(t)
}

func TestOrderService_CreateOrder_RequiresAuthentication(t *testing.T) {
	api := new(MockOrderAPI)
	session := new(MockCartSession)
	session.On("IsAuthenticated").Return(false)

	result, err := NewOrderService(api, zerolog.Nop()).CreateOrder(context.Background(), session, CheckoutRequest{
		PaymentMethod: model.PaymentCard,
	})

	assert.ErrorIs(t, err, model.ErrAuthRequired)
	assert.Nil(t, result)
	api.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_InvalidPaymentMethod(t *testing.T) {
	session := new(MockCartSession)
	session.On("IsAuthenticated").Return(true)

	_, err := NewOrderService(new(MockOrderAPI), zerolog.Nop()).CreateOrder(context.Background(), session, CheckoutRequest{
		PaymentMethod: "bitcoin",
	})

	assert.ErrorIs(t, err, model.ErrInvalidPayment)
}

func TestOrderService_CreateOrder_EnsuresCartSynced(t *testing.T) {
	tests := []struct {
		name        string
		snap        cart.Snapshot
		snapErr     error
		expectedErr error
	}{
		{
			name:        "Empty cart",
			snap:        cart.Snapshot{CartState: model.CartState{ID: "cart-1"}},
			expectedErr: model.ErrCartEmpty,
		},
		{
			name:        "Unsynced cart",
			snap:        cart.Snapshot{CartState: model.CartState{Items: []model.CartItem{{ProductID: "p", Quantity: 1}}}},
			expectedErr: model.ErrCartNotSynced,
		},
		{
			name:        "Disposed store",
			snapErr:     cart.ErrDisposed,
			expectedErr: cart.ErrDisposed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			api := new(MockOrderAPI)
			session := new(MockCartSession)
			session.On("IsAuthenticated").Return(true)
			session.On("SyncedSnapshot", ctx).Return(tt.snap, tt.snapErr).Once()

			result, err := NewOrderService(api, zerolog.Nop()).CreateOrder(ctx, session, CheckoutRequest{
				PaymentMethod: model.PaymentCard,
			})

			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Nil(t, result)
			api.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
			session.AssertExpectations(t)
		})
	}
}

func TestOrderService_CreateOrder_FailureLeavesCartIntact(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Backend rejection",
			err:      &backend.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "Product out of stock"},
			expected: "Product out of stock",
		},
		{
			name:     "Transport failure",
			err:      backend.ErrUnavailable,
			expected: "Failed to create order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			api := new(MockOrderAPI)
			session := new(MockCartSession)
			session.On("IsAuthenticated").Return(true)
			session.On("SyncedSnapshot", ctx).Return(syncedCart(), nil)
			session.On("Credentials", ctx).Return(userCreds, nil)
			api.On("CreateOrder", ctx, userCreds, mock.Anything).Return(nil, tt.err)

			result, err := NewOrderService(api, zerolog.Nop()).CreateOrder(ctx, session, CheckoutRequest{
				PaymentMethod: model.PaymentCard,
			})

			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, tt.expected, result.Error)
			session.AssertNotCalled(t, "ClearCart", mock.Anything)
			session.AssertNotCalled(t, "PurgeEphemeral", mock.Anything)
		})
	}
}

func TestOrderService_CreateOrder_ClearFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	api := new(MockOrderAPI)
	session := new(MockCartSession)
	session.On("IsAuthenticated").Return(true)
	session.On("SyncedSnapshot", ctx).Return(syncedCart(), nil)
	session.On("Credentials", ctx).Return(userCreds, nil)
	session.On("ClearCart", ctx).Return(errors.New("timeout"))
	session.On("PurgeEphemeral", ctx).Return()
	api.On("CreateOrder", ctx, userCreds, mock.Anything).Return(&backend.Order{ID: "order-4"}, nil)

	result, err := NewOrderService(api, zerolog.Nop()).CreateOrder(ctx, session, CheckoutRequest{
		PaymentMethod: model.PaymentCard,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	session.AssertCalled(t, "PurgeEphemeral", ctx)
}

func TestOrderService_History(t *testing.T) {
	ctx := context.Background()
	api := new(MockOrderAPI)
	session := new(MockCartSession)
	session.On("IsAuthenticated").Return(true)
	session.On("Credentials", ctx).Return(userCreds, nil)
	api.On("ListOrders", ctx, userCreds).Return([]backend.Order{
		{ID: "order-1", Status: "delivered", PaymentMethod: "card", TotalAmount: decimal.NewNullDecimal(decimal.RequireFromString("150.25"))},
		{ID: "order-2", Status: "pending"},
	}, nil)

	orders, err := NewOrderService(api, zerolog.Nop()).History(ctx, session)

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, model.PaymentCard, orders[0].PaymentMethod)
	assert.Equal(t, 150.25, orders[0].Total)
	assert.Equal(t, 0.0, orders[1].Total)
}

func TestOrderService_History_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("Anonymous visitor", func(t *testing.T) {
		session := new(MockCartSession)
		session.On("IsAuthenticated").Return(false)

		_, err := NewOrderService(new(MockOrderAPI), zerolog.Nop()).History(ctx, session)

		assert.ErrorIs(t, err, model.ErrAuthRequired)
	})

	t.Run("Backend failure", func(t *testing.T) {
		api := new(MockOrderAPI)
		session := new(MockCartSession)
		session.On("IsAuthenticated").Return(true)
		session.On("Credentials", ctx).Return(userCreds, nil)
		api.On("ListOrders", ctx, userCreds).Return(nil, errors.New("boom"))

		orders, err := NewOrderService(api, zerolog.Nop()).History(ctx, session)

		require.Error(t, err)
		assert.Nil(t, orders)
		assert.Contains(t, err.Error(), "failed to list orders")
	})
}
