package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type createOrderRequest struct {
	PaymentMethod model.PaymentMethod `json:"paymentMethod" validate:"required"`
	PaymentID     *string             `json:"paymentId"`
}

// OrderHandler handles checkout and order history HTTP requests.
type OrderHandler struct {
	stores   StoreSource
	service  service.OrderService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(stores StoreSource, service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		stores:   stores,
		service:  service,
		validate: validator.New(),
		logger:   logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, h.validate, &req, h.logger) {
		return
	}

	v := visitor(r)
	result, err := h.service.CreateOrder(r.Context(), h.stores(r.Context(), v), service.CheckoutRequest{
		PaymentMethod: req.PaymentMethod,
		PaymentID:     req.PaymentID,
		Locale:        v.Locale,
	})
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}

	if !result.Success {
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// History handles GET /api/orders requests.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.History(r.Context(), h.stores(r.Context(), visitor(r)))
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}
