package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubProducts struct{}

func (stubProducts) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	return []model.Product{{ID: "prod-1", Name: "Mug", Price: 100}}, nil
}

func (stubProducts) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id != "prod-1" {
		return nil, model.ErrProductNotFound
	}
	return &model.Product{ID: "prod-1", Name: "Mug", Price: 100}, nil
}

func newTestRouter() http.Handler {
	logger := zerolog.Nop()
	return New(Handlers{
		Cart:    handler.NewCartHandler(nil, stubProducts{}, logger),
		Order:   handler.NewOrderHandler(nil, nil, logger),
		Product: handler.NewProductHandler(stubProducts{}, logger),
		Payment: handler.NewPaymentHandler(nil, nil, logger),
	}, config.CookieConfig{Visitor: "sf_visitor", Token: "token", Locale: "NEXT_LOCALE"}, logger)
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectCookie   bool
	}{
		{name: "Health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "Product list", method: http.MethodGet, path: "/api/products", expectedStatus: http.StatusOK, expectCookie: true},
		{name: "Product detail", method: http.MethodGet, path: "/api/products/prod-1", expectedStatus: http.StatusOK, expectCookie: true},
		{name: "Unknown product", method: http.MethodGet, path: "/api/products/nope", expectedStatus: http.StatusNotFound, expectCookie: true},
		{name: "Wrong method", method: http.MethodPatch, path: "/api/products", expectedStatus: http.StatusMethodNotAllowed, expectCookie: true},
		{name: "Unknown route", method: http.MethodGet, path: "/api/unknown", expectedStatus: http.StatusNotFound, expectCookie: true},
		{name: "Preflight", method: http.MethodOptions, path: "/api/cart", expectedStatus: http.StatusNoContent},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectCookie, len(w.Result().Cookies()) == 1)
		})
	}
}
