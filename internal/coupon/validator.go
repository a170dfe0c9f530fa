package coupon

import (
	"context"
	"fmt"

	"storefront/internal/backend"
	"storefront/internal/identity"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MessageCodeRequired is returned when an empty code is submitted.
const MessageCodeRequired = "cart.coupon.required"

// validator implements Validator on top of the backend coupon endpoint.
type validator struct {
	api    API
	logger zerolog.Logger
}

// NewValidator creates a new coupon validator.
func NewValidator(api API, logger zerolog.Logger) Validator {
	return &validator{
		api:    api,
		logger: logger.With().Str("component", "coupon-validator").Logger(),
	}
}

// Validate checks a coupon code against the pre-discount subtotal.
func (v *validator) Validate(ctx context.Context, creds identity.Credentials, code string, orderTotal float64, locale string) (*Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return &Result{Message: MessageCodeRequired}, nil
	}
	if locale == "" {
		locale = model.DefaultLocale
	}

	resp, err := v.api.ValidateCoupon(ctx, creds, backend.CouponValidationRequest{
		Code:       code,
		OrderTotal: orderTotal,
		Locale:     locale,
	})
	if err != nil {
		v.logger.Error().Err(err).Str("coupon_code", code).Msg("coupon validation request failed")
		return nil, fmt.Errorf("failed to validate coupon: %w", err)
	}

	if !resp.IsValid || resp.Coupon == nil {
		v.logger.Debug().
			Str("coupon_code", code).
			Str("message", resp.Message).
			Msg("coupon rejected")
		return &Result{Message: resp.Message}, nil
	}

	discount := decimal.Max(resp.Discount, decimal.Zero).InexactFloat64()

	applied := &model.AppliedCoupon{
		ID:           resp.Coupon.ID,
		Code:         NormalizeCode(resp.Coupon.Code),
		Discount:     discount,
		DiscountType: model.DiscountType(resp.Coupon.DiscountType),
		Description:  resp.Coupon.Description,
	}
	if applied.Code == "" {
		applied.Code = code
	}
	if applied.DiscountType == "" {
		applied.DiscountType = model.DiscountFixed
	}

	v.logger.Debug().
		Str("coupon_code", applied.Code).
		Float64("discount", discount).
		Float64("order_total", orderTotal).
		Msg("coupon validated successfully")

	return &Result{
		IsValid:  true,
		Coupon:   applied,
		Discount: discount,
		Message:  resp.Message,
	}, nil
}
