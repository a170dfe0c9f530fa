package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/backend"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orders OrderAPI
	logger zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(orders OrderAPI, logger zerolog.Logger) OrderService {
	return &orderService{
		orders: orders,
		logger: logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrder submits the visitor's cart as an order.
func (s *orderService) CreateOrder(ctx context.Context, c CartSession, req CheckoutRequest) (*model.OrderResult, error) {
	if !c.IsAuthenticated() {
		s.logger.Warn().Msg("order attempted without authentication")
		return nil, model.ErrAuthRequired
	}
	if !req.PaymentMethod.IsValid() {
		return nil, model.ErrInvalidPayment
	}

	snap, err := s.ensureCartSynced(ctx, c)
	if err != nil {
		return nil, err
	}

	payload := buildOrderRequest(snap, req)

	creds, err := c.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	order, err := s.orders.CreateOrder(ctx, creds, payload)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("cart_id", payload.CartID).
			Str("payment_method", string(payload.PaymentMethod)).
			Msg("failed to create order")
		return &model.OrderResult{Error: orderErrorMessage(err)}, nil
	}

	if err := c.ClearCart(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to clear cart after order")
	}
	c.PurgeEphemeral(ctx)

	result := toOrder(*order)
	s.logger.Info().
		Str("order_id", order.ID).
		Str("cart_id", payload.CartID).
		Int("item_count", snap.TotalItems).
		Msg("order created successfully")

	return &model.OrderResult{
		Success: true,
		OrderID: order.ID,
		Order:   &result,
	}, nil
}

// History lists the authenticated visitor's orders.
func (s *orderService) History(ctx context.Context, c CartSession) ([]model.Order, error) {
	if !c.IsAuthenticated() {
		return nil, model.ErrAuthRequired
	}

	creds, err := c.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	raw, err := s.orders.ListOrders(ctx, creds)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]model.Order, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, toOrder(o))
	}
	return orders, nil
}

// ensureCartSynced takes a synced snapshot and refuses to continue with an
// empty or unsynced cart.
func (s *orderService) ensureCartSynced(ctx context.Context, c CartSession) (model.CartState, error) {
	snap, err := c.SyncedSnapshot(ctx)
	if err != nil {
		return model.CartState{}, err
	}

	if len(snap.Items) == 0 {
		return model.CartState{}, model.ErrCartEmpty
	}
	if snap.ID == "" {
		return model.CartState{}, model.ErrCartNotSynced
	}
	return snap.CartState, nil
}

func buildOrderRequest(snap model.CartState, req CheckoutRequest) model.OrderRequest {
	address := model.CompanyPickupAddress
	if snap.DeliveryType == model.DeliveryHome && snap.DeliveryAddress != "" {
		address = snap.DeliveryAddress
	}

	locale := req.Locale
	if locale == "" {
		locale = model.DefaultLocale
	}

	out := model.OrderRequest{
		CartID:          snap.ID,
		PaymentMethod:   req.PaymentMethod,
		GoogleAddress:   address,
		DeliveryEnabled: snap.DeliveryType == model.DeliveryHome,
		DeliveryFee:     snap.DeliveryCost,
		Locale:          locale,
		PaymentID:       req.PaymentID,
	}
	if snap.AppliedCoupon != nil {
		id := snap.AppliedCoupon.ID
		out.CouponID = &id
	}
	return out
}

func toOrder(o backend.Order) model.Order {
	return model.Order{
		ID:            o.ID,
		Status:        o.Status,
		PaymentMethod: model.PaymentMethod(o.PaymentMethod),
		Total:         o.TotalAmount.Decimal.InexactFloat64(),
		DeliveryFee:   o.DeliveryFee.Decimal.InexactFloat64(),
		ItemCount:     len(o.Items),
		CreatedAt:     o.CreatedAt,
	}
}

func orderErrorMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to create order"
}
