// Package payment talks to the Moyasar payment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Gateway creates and looks up card payments.
type Gateway interface {
	Create(ctx context.Context, req CardRequest) (*Payment, error)
	Get(ctx context.Context, id string) (*Payment, error)
}

// CardRequest is a card payment initiated by the storefront.
type CardRequest struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	Description string  `json:"description"`
	Name        string  `json:"name" validate:"required"`
	Number      string  `json:"number" validate:"required,credit_card"`
	CVC         string  `json:"cvc" validate:"required,numeric,min=3,max=4"`
	Month       string  `json:"month" validate:"required,numeric,min=1,max=2"`
	Year        string  `json:"year" validate:"required,numeric,len=4"`
	CallbackURL string  `json:"callbackUrl" validate:"omitempty,url"`
}

// Payment is a gateway payment. Amount is in minor currency units.
type Payment struct {
	ID          string `json:"id" validate:"required"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Source      Source `json:"source"`
}

// Source describes the card used for a payment.
type Source struct {
	Type           string `json:"type"`
	Company        string `json:"company"`
	Name           string `json:"name"`
	Number         string `json:"number"`
	Message        string `json:"message"`
	TransactionURL string `json:"transaction_url"`
}

// Result is the shape returned to the browser.
type Result struct {
	Success    bool    `json:"success"`
	PaymentID  string  `json:"payment_id,omitempty"`
	Status     string  `json:"status,omitempty"`
	PaymentURL string  `json:"payment_url,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// ToResult converts a payment for the browser.
func ToResult(p *Payment) Result {
	return Result{
		Success:    p.Status != "failed",
		PaymentID:  p.ID,
		Status:     p.Status,
		PaymentURL: p.Source.TransactionURL,
		Amount:     FromMinorUnits(p.Amount),
		Currency:   p.Currency,
		Message:    p.Source.Message,
	}
}

// GatewayError is a non-2xx response from the gateway.
type GatewayError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error: status %d: %s", e.StatusCode, e.Message)
}

// ToMinorUnits converts an amount to halalas (x100), rounding half away
// from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts halalas back to the currency amount.
func FromMinorUnits(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}

type createRequest struct {
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Description string     `json:"description,omitempty"`
	CallbackURL string     `json:"callback_url,omitempty"`
	Source      cardSource `json:"source"`
}

type cardSource struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Number string `json:"number"`
	CVC    string `json:"cvc"`
	Month  string `json:"month"`
	Year   string `json:"year"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Client is the Moyasar REST client.
type Client struct {
	baseURL     string
	secretKey   string
	currency    string
	callbackURL string
	httpClient  *http.Client
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewClient creates a new Moyasar client.
func NewClient(cfg config.PaymentConfig, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		secretKey:   cfg.SecretKey,
		currency:    cfg.Currency,
		callbackURL: cfg.CallbackURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		validate: validator.New(),
		logger:   logger.With().Str("component", "moyasar").Logger(),
	}
}

// Validate checks a card request before it is sent.
func (c *Client) Validate(req CardRequest) error {
	return c.validate.Struct(&req)
}

// Create starts a card payment.
func (c *Client) Create(ctx context.Context, req CardRequest) (*Payment, error) {
	if err := c.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid payment request: %w", err)
	}

	callback := req.CallbackURL
	if callback == "" {
		callback = c.callbackURL
	}
	body := createRequest{
		Amount:      ToMinorUnits(req.Amount),
		Currency:    c.currency,
		Description: req.Description,
		CallbackURL: callback,
		Source: cardSource{
			Type:   "creditcard",
			Name:   req.Name,
			Number: req.Number,
			CVC:    req.CVC,
			Month:  req.Month,
			Year:   req.Year,
		},
	}

	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments", body, &p); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("payment_id", p.ID).
		Str("status", p.Status).
		Int64("amount", p.Amount).
		Msg("payment created")
	return &p, nil
}

// Get fetches a payment by id.
func (c *Client) Get(ctx context.Context, id string) (*Payment, error) {
	if id == "" {
		return nil, model.ErrPaymentNotFound
	}

	var p Payment
	err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &p)
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound {
		return nil, model.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("payment gateway request failed")
		return fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		if eb.Message == "" {
			eb.Message = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("type", eb.Type).
			Str("message", eb.Message).
			Msg("payment gateway returned an error")
		return &GatewayError{StatusCode: resp.StatusCode, Type: eb.Type, Message: eb.Message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := c.validate.Struct(out); err != nil {
		return fmt.Errorf("invalid payment payload: %w", err)
	}
	return nil
}
