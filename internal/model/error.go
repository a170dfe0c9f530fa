package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeInvalidParameter    = "INVALID_PARAMETER"
	ErrCodeAuthRequired        = "AUTH_REQUIRED"
	ErrCodeCouponLoginRequired = "COUPON_LOGIN_REQUIRED"
	ErrCodeCartEmpty           = "CART_EMPTY"
	ErrCodeCartNotSynced       = "CART_NOT_SYNCED"
	ErrCodeItemNotFound        = "ITEM_NOT_FOUND"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeInvalidDelivery     = "INVALID_DELIVERY_TYPE"
	ErrCodeOptionNotFound      = "DELIVERY_OPTION_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidPayment      = "INVALID_PAYMENT_METHOD"
	ErrCodePaymentNotFound     = "PAYMENT_NOT_FOUND"
	ErrCodeBackendUnavailable  = "BACKEND_UNAVAILABLE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrAuthRequired = NewDomainError(ErrCodeAuthRequired, "Authentication is required to create an order")
	// ErrCouponLoginRequired carries the message key the UI translates.
	ErrCouponLoginRequired = NewDomainError(ErrCodeCouponLoginRequired, "cart.coupon.loginRequired")
	ErrCartEmpty           = NewDomainError(ErrCodeCartEmpty, "Cart is empty")
	ErrCartNotSynced       = NewDomainError(ErrCodeCartNotSynced, "Cart is not synchronised with the server")
	ErrItemNotFound        = NewDomainError(ErrCodeItemNotFound, "Cart item not found")
	ErrInvalidQuantity     = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidDeliveryType = NewDomainError(ErrCodeInvalidDelivery, "Delivery type must be company or home")
	ErrOptionNotFound      = NewDomainError(ErrCodeOptionNotFound, "Delivery option not found")
	ErrProductNotFound     = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrInvalidPayment      = NewDomainError(ErrCodeInvalidPayment, "Payment method must be card, cash_on_delivery or apple_pay")
	ErrPaymentNotFound     = NewDomainError(ErrCodePaymentNotFound, "Payment not found")
)
