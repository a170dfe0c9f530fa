package router

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Product *handler.ProductHandler
	Payment *handler.PaymentHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, cookies config.CookieConfig, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	})

	mux.HandleFunc("GET /api/cart", h.Cart.Get)
	mux.HandleFunc("DELETE /api/cart", h.Cart.Clear)
	mux.HandleFunc("POST /api/cart/items", h.Cart.AddItem)
	mux.HandleFunc("PUT /api/cart/items/{id}", h.Cart.UpdateItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.Cart.RemoveItem)
	mux.HandleFunc("PUT /api/cart/delivery", h.Cart.UpdateDelivery)
	mux.HandleFunc("GET /api/delivery-options", h.Cart.DeliveryOptions)
	mux.HandleFunc("POST /api/cart/coupon", h.Cart.ApplyCoupon)
	mux.HandleFunc("DELETE /api/cart/coupon", h.Cart.RemoveCoupon)

	mux.HandleFunc("POST /api/orders", h.Order.Create)
	mux.HandleFunc("GET /api/orders", h.Order.History)

	mux.HandleFunc("GET /api/products", h.Product.GetAll)
	mux.HandleFunc("GET /api/products/{id}", h.Product.GetByID)

	mux.HandleFunc("POST /api/moyasar/payment", h.Payment.Create)
	mux.HandleFunc("GET /api/moyasar/payment", h.Payment.Status)

	// Recovery -> Logging -> CORS -> VisitorIdentity
	var handler http.Handler = mux
	handler = middleware.VisitorIdentity(cookies, logger)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
