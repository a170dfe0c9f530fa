package coupon

import (
	"context"
	"strings"

	"storefront/internal/backend"
	"storefront/internal/identity"
	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// Validator defines the interface for coupon validation.
type Validator interface {
	// Validate checks a coupon code against the pre-discount subtotal.
	// The returned discount is always an absolute amount.
	Validate(ctx context.Context, creds identity.Credentials, code string, orderTotal float64, locale string) (*Result, error)
}

// Result is the outcome of a coupon validation.
type Result struct {
	IsValid  bool
	Coupon   *model.AppliedCoupon
	Discount float64
	Message  string
}

// API is the backend endpoint the validator relies on.
type API interface {
	ValidateCoupon(ctx context.Context, creds identity.Credentials, req backend.CouponValidationRequest) (*backend.CouponValidation, error)
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DisplayPercentage recomputes the percentage shown for a coupon from its
// absolute discount and the current subtotal.
func DisplayPercentage(c model.AppliedCoupon, subtotal float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	return decimal.NewFromFloat(c.Discount).
		Div(decimal.NewFromFloat(subtotal)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}
