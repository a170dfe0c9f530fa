package handler

import (
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type addItemRequest struct {
	ProductID      string                        `json:"productId" validate:"required"`
	Quantity       int                           `json:"quantity" validate:"required"`
	Customizations []model.CartItemCustomization `json:"customizations"`
}

// updateItemRequest carries either a quantity or a customization set.
type updateItemRequest struct {
	Quantity       *int                           `json:"quantity" validate:"required_without=Customizations"`
	Customizations *[]model.CartItemCustomization `json:"customizations"`
}

type deliveryRequest struct {
	Type     *model.DeliveryType `json:"type"`
	OptionID *string             `json:"optionId"`
	Address  *string             `json:"address"`
}

type couponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	cart.CouponResult
	Cart cart.Snapshot `json:"cart"`
}

// CartHandler handles cart, delivery and coupon HTTP requests.
type CartHandler struct {
	stores   StoreSource
	products service.ProductService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(stores StoreSource, products service.ProductService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		stores:   stores,
		products: products,
		validate: validator.New(),
		logger:   logger.With().Str("handler", "cart").Logger(),
	}
}

func (h *CartHandler) store(r *http.Request) CartStore {
	return h.stores(r.Context(), visitor(r))
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.store(r)
	s.InitializeCart(r.Context())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s := h.store(r)
	if err := s.ClearCart(r.Context()); err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// AddItem handles POST /api/cart/items. Prices and questions come from the
// catalog, never from the request.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeBody(w, r, h.validate, &req, h.logger) {
		return
	}

	product, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}

	s := h.store(r)
	err = s.AddToCart(r.Context(), cart.AddItemInput{
		ProductID:      product.ID,
		Price:          product.Price,
		SalePrice:      product.SalePrice,
		Quantity:       req.Quantity,
		Customizations: req.Customizations,
		Questions:      product.Questions,
	})
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// UpdateItem handles PUT /api/cart/items/{id}.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !decodeBody(w, r, h.validate, &req, h.logger) {
		return
	}

	ref := r.PathValue("id")
	s := h.store(r)

	var err error
	if req.Customizations != nil {
		err = s.UpdateItemCustomizations(r.Context(), ref, *req.Customizations)
	} else {
		err = s.UpdateQuantity(r.Context(), ref, *req.Quantity)
	}
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// RemoveItem handles DELETE /api/cart/items/{id}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := h.store(r)
	if err := s.RemoveFromCart(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// UpdateDelivery handles PUT /api/cart/delivery. Type is applied before
// option so switching to home and picking an option works in one call.
func (h *CartHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if !decodeBody(w, r, h.validate, &req, h.logger) {
		return
	}
	if req.Type == nil && req.OptionID == nil && req.Address == nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "type, optionId or address is required", h.logger)
		return
	}

	ctx := r.Context()
	s := h.store(r)
	s.InitializeCart(ctx)

	if req.Type != nil {
		if err := s.SetDeliveryType(ctx, *req.Type); err != nil {
			writeFailure(w, err, h.logger)
			return
		}
	}
	if req.OptionID != nil {
		if err := s.SetDeliveryOption(ctx, *req.OptionID); err != nil {
			writeFailure(w, err, h.logger)
			return
		}
	}
	if req.Address != nil {
		s.SetDeliveryAddress(ctx, *req.Address)
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// DeliveryOptions handles GET /api/delivery-options.
func (h *CartHandler) DeliveryOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.store(r).FetchDeliveryOptions(r.Context())
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// ApplyCoupon handles POST /api/cart/coupon. A rejected code is still a 200;
// the outcome is in the body.
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if !decodeBody(w, r, h.validate, &req, h.logger) {
		return
	}

	v := visitor(r)
	s := h.stores(r.Context(), v)
	s.InitializeCart(r.Context())
	result := s.ApplyCoupon(r.Context(), req.Code, v.Locale)

	writeJSON(w, http.StatusOK, couponResponse{CouponResult: result, Cart: s.Snapshot()})
}

// RemoveCoupon handles DELETE /api/cart/coupon.
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	s := h.store(r)
	s.RemoveCoupon(r.Context())
	writeJSON(w, http.StatusOK, s.Snapshot())
}
