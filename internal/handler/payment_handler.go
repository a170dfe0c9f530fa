package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/model"
	"storefront/internal/payment"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type cardPaymentRequest struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	CVC         string `json:"cvc"`
	Month       string `json:"month"`
	Year        string `json:"year"`
	CallbackURL string `json:"callbackUrl"`
}

// PaymentHandler relays card payments to the payment gateway.
type PaymentHandler struct {
	stores  StoreSource
	gateway payment.Gateway
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(stores StoreSource, gateway payment.Gateway, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		stores:  stores,
		gateway: gateway,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// Create handles POST /api/moyasar/payment. The amount charged is the
// visitor's cart total.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req cardPaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	s := h.stores(r.Context(), visitor(r))
	s.InitializeCart(r.Context())
	snap := s.Snapshot()
	if len(snap.Items) == 0 {
		writeFailure(w, model.ErrCartEmpty, h.logger)
		return
	}

	p, err := h.gateway.Create(r.Context(), payment.CardRequest{
		Amount:      snap.TotalPrice,
		Description: "Cart " + snap.ID,
		Name:        req.Name,
		Number:      req.Number,
		CVC:         req.CVC,
		Month:       req.Month,
		Year:        req.Year,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		h.writeGatewayFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, payment.ToResult(p))
}

// Status handles GET /api/moyasar/payment?id=.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	p, err := h.gateway.Get(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeGatewayFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payment.ToResult(p))
}

func (h *PaymentHandler) writeGatewayFailure(w http.ResponseWriter, err error) {
	var invalid validator.ValidationErrors
	var gwErr *payment.GatewayError

	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, payment.Result{Message: "invalid card details"})
	case errors.As(err, &gwErr) && gwErr.StatusCode < http.StatusInternalServerError:
		writeJSON(w, http.StatusBadRequest, payment.Result{Message: gwErr.Message})
	case errors.As(err, &gwErr):
		h.logger.Error().Err(err).Msg("payment gateway failed")
		writeJSON(w, http.StatusBadGateway, payment.Result{Message: "payment gateway unavailable"})
	default:
		writeFailure(w, err, h.logger)
	}
}
