// Package backend is the HTTP transport to the storefront backend REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/identity"
	"storefront/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("backend unavailable")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

type response struct {
	status int
	body   []byte
}

// Client issues calls to the backend API. Identity is passed per call so the
// authenticated or anonymous headers are always chosen fresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewClient creates a new backend API client.
func NewClient(cfg config.BackendConfig, breakerCfg config.BreakerConfig, logger zerolog.Logger) *Client {
	logger = logger.With().Str("component", "backend-client").Logger()

	maxFailures := uint32(breakerCfg.MaxFailures)
	settings := gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Duration(breakerCfg.OpenTimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker:  gobreaker.NewCircuitBreaker[*response](settings),
		validate: validator.New(),
		logger:   logger,
	}
}

// GetCart fetches the cart owned by the given identity.
func (c *Client) GetCart(ctx context.Context, creds identity.Credentials) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, "/carts", &creds, nil, &cart); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(&cart); err != nil {
		return nil, fmt.Errorf("invalid cart payload: %w", err)
	}
	return &cart, nil
}

// AddItem adds a line to the cart.
func (c *Client) AddItem(ctx context.Context, creds identity.Credentials, req AddItemRequest) error {
	return c.do(ctx, http.MethodPost, "/carts/items", &creds, req, nil)
}

// UpdateItemQuantity sets the quantity of a cart line.
func (c *Client) UpdateItemQuantity(ctx context.Context, creds identity.Credentials, itemID string, quantity int) error {
	return c.do(ctx, http.MethodPut, "/carts/items/"+url.PathEscape(itemID), &creds, updateQuantityRequest{Quantity: quantity}, nil)
}

// DeleteItem removes a cart line.
func (c *Client) DeleteItem(ctx context.Context, creds identity.Credentials, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/carts/items/"+url.PathEscape(itemID), &creds, nil, nil)
}

// ClearCart removes every line of the cart.
func (c *Client) ClearCart(ctx context.Context, creds identity.Credentials) error {
	return c.do(ctx, http.MethodDelete, "/carts", &creds, nil, nil)
}

// GetDeliverySettings returns the configured delivery tiers.
func (c *Client) GetDeliverySettings(ctx context.Context) ([]DeliveryCost, error) {
	var resp deliverySettingsResponse
	if err := c.do(ctx, http.MethodGet, "/settings/delivery", nil, nil, &resp); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, fmt.Errorf("invalid delivery settings payload: %w", err)
	}
	return resp.Data.DeliveryCosts, nil
}

// ValidateCoupon asks the backend to validate a coupon against an order total.
// A rejected coupon is reported through IsValid, not as an error.
func (c *Client) ValidateCoupon(ctx context.Context, creds identity.Credentials, req CouponValidationRequest) (*CouponValidation, error) {
	var result CouponValidation
	err := c.do(ctx, http.MethodPost, "/coupons/validate", &creds, req, &result)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode >= 500 {
			return nil, err
		}
		// 4xx responses still carry a validation verdict.
		result = CouponValidation{}
		if jsonErr := json.Unmarshal(apiErr.Body, &result); jsonErr != nil {
			return nil, err
		}
		result.IsValid = false
		if result.Message == "" {
			result.Message = apiErr.Message
		}
		return &result, nil
	}
	if err := c.validate.Struct(&result); err != nil {
		return nil, fmt.Errorf("invalid coupon payload: %w", err)
	}
	return &result, nil
}

// CreateOrder submits an order.
func (c *Client) CreateOrder(ctx context.Context, creds identity.Credentials, req model.OrderRequest) (*Order, error) {
	var resp orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/orders", &creds, req, &resp); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, fmt.Errorf("invalid order payload: %w", err)
	}
	return &resp.Data, nil
}

// ListOrders returns the order history of the authenticated user.
func (c *Client) ListOrders(ctx context.Context, creds identity.Credentials) ([]Order, error) {
	var resp ordersEnvelope
	if err := c.do(ctx, http.MethodGet, "/orders", &creds, nil, &resp); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, fmt.Errorf("invalid orders payload: %w", err)
	}
	return resp.Data, nil
}

// GetProducts lists catalog products.
func (c *Client) GetProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp productsEnvelope
	if err := c.do(ctx, http.MethodGet, "/products?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, fmt.Errorf("invalid products payload: %w", err)
	}
	return resp.Data, nil
}

// GetProduct fetches one product with its configurator questions.
// A missing product yields (nil, nil).
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var resp productEnvelope
	err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil, &resp)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := c.validate.Struct(&resp); err != nil {
		return nil, fmt.Errorf("invalid product payload: %w", err)
	}
	return &resp.Data, nil
}

// do executes one request through the circuit breaker. 5xx responses and
// network failures count against the breaker; 4xx responses do not.
func (c *Client) do(ctx context.Context, method, path string, creds *identity.Credentials, body, out any) error {
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
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		creds.Apply(req)
	}

	res, err := c.breaker.Execute(func() (*response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		r := &response{status: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return r, newAPIError(r)
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn().Str("method", method).Str("path", path).Msg("backend call rejected by circuit breaker")
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("backend call failed")
		return err
	}

	if res.status >= http.StatusBadRequest {
		apiErr := newAPIError(res)
		c.logger.Warn().
			Int("status", res.status).
			Str("method", method).
			Str("path", path).
			Str("message", apiErr.Message).
			Msg("backend call rejected")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(res.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func newAPIError(r *response) *APIError {
	apiErr := &APIError{StatusCode: r.status, Body: r.body}
	var eb errorBody
	if err := json.Unmarshal(r.body, &eb); err == nil {
		apiErr.Message = eb.Message
		if apiErr.Message == "" {
			apiErr.Message = eb.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(r.status)
	}
	return apiErr
}
