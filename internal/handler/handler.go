package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// CartStore is the visitor cart as used by the HTTP handlers.
type CartStore interface {
	service.CartSession

	Snapshot() cart.Snapshot
	InitializeCart(ctx context.Context)
	AddToCart(ctx context.Context, in cart.AddItemInput) error
	UpdateQuantity(ctx context.Context, ref string, quantity int) error
	RemoveFromCart(ctx context.Context, ref string) error
	UpdateItemCustomizations(ctx context.Context, ref string, customizations []model.CartItemCustomization) error
	SetDeliveryType(ctx context.Context, t model.DeliveryType) error
	SetDeliveryOption(ctx context.Context, optionID string) error
	SetDeliveryAddress(ctx context.Context, address string)
	FetchDeliveryOptions(ctx context.Context) ([]model.DeliveryOption, error)
	ApplyCoupon(ctx context.Context, code, locale string) cart.CouponResult
	RemoveCoupon(ctx context.Context)
}

// StoreSource returns the cart store of the request's visitor.
type StoreSource func(ctx context.Context, v middleware.Visitor) CartStore

// RegistrySource adapts a cart registry to a StoreSource.
func RegistrySource(r *cart.Registry) StoreSource {
	return func(ctx context.Context, v middleware.Visitor) CartStore {
		return r.Acquire(ctx, v.ID, v.Token)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("code", code).Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeFailure maps an operation error onto an HTTP status.
func writeFailure(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	var apiErr *backend.APIError

	switch {
	case errors.As(err, &domainErr):
		writeError(w, domainStatus(domainErr.Code), domainErr.Code, domainErr.Message, logger)
	case errors.Is(err, backend.ErrUnavailable), errors.Is(err, cart.ErrDisposed):
		writeError(w, http.StatusServiceUnavailable, model.ErrCodeBackendUnavailable, "storefront backend is unavailable", logger)
	case errors.As(err, &apiErr):
		logger.Error().Err(err).Int("backend_status", apiErr.StatusCode).Msg("backend rejected request")
		writeError(w, http.StatusBadGateway, model.ErrCodeBackendUnavailable, "storefront backend rejected the request", logger)
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
	}
}

func domainStatus(code string) int {
	switch code {
	case model.ErrCodeAuthRequired, model.ErrCodeCouponLoginRequired:
		return http.StatusUnauthorized
	case model.ErrCodeItemNotFound, model.ErrCodeProductNotFound, model.ErrCodeOptionNotFound, model.ErrCodePaymentNotFound:
		return http.StatusNotFound
	case model.ErrCodeCartNotSynced:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// decodeBody decodes and validates a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any, logger zerolog.Logger) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", logger)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, err.Error(), logger)
		return false
	}
	return true
}

// visitor returns the request's visitor set by middleware.VisitorIdentity.
func visitor(r *http.Request) middleware.Visitor {
	v, ok := middleware.VisitorFromContext(r.Context())
	if !ok || v.Locale == "" {
		v.Locale = model.DefaultLocale
	}
	return v
}
