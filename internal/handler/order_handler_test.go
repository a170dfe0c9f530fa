package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOrderHandler_Create(t *testing.T) {
	paymentID := "pay_1"

	tests := []struct {
		name           string
		requestBody    any
		expectService  bool
		checkout       service.CheckoutRequest
		mockReturn     *model.OrderResult
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Success",
			requestBody:    map[string]any{"paymentMethod": "card", "paymentId": paymentID},
			expectService:  true,
			checkout:       service.CheckoutRequest{PaymentMethod: model.PaymentCard, PaymentID: &paymentID, Locale: "en"},
			mockReturn:     &model.OrderResult{Success: true, OrderID: "order-1", Order: &model.Order{ID: "order-1"}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Backend rejected order",
			requestBody:    map[string]any{"paymentMethod": "cash_on_delivery"},
			expectService:  true,
			checkout:       service.CheckoutRequest{PaymentMethod: model.PaymentCashOnDelivery, Locale: "en"},
			mockReturn:     &model.OrderResult{Error: "Out of stock"},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "Not logged in",
			requestBody:    map[string]any{"paymentMethod": "card"},
			expectService:  true,
			checkout:       service.CheckoutRequest{PaymentMethod: model.PaymentCard, Locale: "en"},
			mockError:      model.ErrAuthRequired,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Empty cart",
			requestBody:    map[string]any{"paymentMethod": "card"},
			expectService:  true,
			checkout:       service.CheckoutRequest{PaymentMethod: model.PaymentCard, Locale: "en"},
			mockError:      model.ErrCartEmpty,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Cart not synced",
			requestBody:    map[string]any{"paymentMethod": "card"},
			expectService:  true,
			checkout:       service.CheckoutRequest{PaymentMethod: model.PaymentCard, Locale: "en"},
			mockError:      model.ErrCartNotSynced,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "Missing payment method",
			requestBody:    map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid JSON",
			requestBody:    `{"paymentMethod"`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockCartStore)
			orders := new(MockOrderService)
			if tt.expectService {
				orders.On("CreateOrder", mock.Anything, store, tt.checkout).Return(tt.mockReturn, tt.mockError)
			}

			w := httptest.NewRecorder()
			NewOrderHandler(sourceOf(store), orders, zerolog.Nop()).
				Create(w, newRequest(t, http.MethodPost, "/api/orders", tt.requestBody))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				orders.AssertExpectations(t)
			} else {
				orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOrderHandler_Create_ResultBody(t *testing.T) {
	store := new(MockCartStore)
	orders := new(MockOrderService)
	orders.On("CreateOrder", mock.Anything, store, mock.Anything).
		Return(&model.OrderResult{Error: "Out of stock"}, nil)

	w := httptest.NewRecorder()
	NewOrderHandler(sourceOf(store), orders, zerolog.Nop()).
		Create(w, newRequest(t, http.MethodPost, "/api/orders", map[string]any{"paymentMethod": "card"}))

	result := decodeResponse[model.OrderResult](t, w)
	assert.False(t, result.Success)
	assert.Equal(t, "Out of stock", result.Error)
}

func TestOrderHandler_History(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := new(MockCartStore)
		orders := new(MockOrderService)
		orders.On("History", mock.Anything, store).Return([]model.Order{
			{ID: "order-1", Total: 190},
			{ID: "order-2", Total: 45},
		}, nil)

		w := httptest.NewRecorder()
		NewOrderHandler(sourceOf(store), orders, zerolog.Nop()).
			History(w, newRequest(t, http.MethodGet, "/api/orders", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		got := decodeResponse[[]model.Order](t, w)
		require.Len(t, got, 2)
		assert.Equal(t, "order-1", got[0].ID)
	})

	t.Run("Not logged in", func(t *testing.T) {
		store := new(MockCartStore)
		orders := new(MockOrderService)
		orders.On("History", mock.Anything, store).Return(nil, model.ErrAuthRequired)

		w := httptest.NewRecorder()
		NewOrderHandler(sourceOf(store), orders, zerolog.Nop()).
			History(w, newRequest(t, http.MethodGet, "/api/orders", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Backend failure", func(t *testing.T) {
		store := new(MockCartStore)
		orders := new(MockOrderService)
		orders.On("History", mock.Anything, store).Return(nil, errors.New("failed to list orders: timeout"))

		w := httptest.NewRecorder()
		NewOrderHandler(sourceOf(store), orders, zerolog.Nop()).
			History(w, newRequest(t, http.MethodGet, "/api/orders", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "timeout")
	})
}
