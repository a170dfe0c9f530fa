package model

import "time"

// PaymentMethod names how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentApplePay       PaymentMethod = "apple_pay"
)

// IsValid checks if the payment method is known.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCard, PaymentCashOnDelivery, PaymentApplePay:
		return true
	default:
		return false
	}
}

// CompanyPickupAddress is sent as the address when no home address was entered.
const CompanyPickupAddress = "Company Pickup"

// DefaultLocale is used when the visitor has no locale cookie.
const DefaultLocale = "ar"

// OrderRequest is the payload submitted to the order-creation endpoint.
type OrderRequest struct {
	CartID          string        `json:"cartId"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	GoogleAddress   string        `json:"googleAddress"`
	DeliveryEnabled bool          `json:"deliveryEnabled"`
	DeliveryFee     float64       `json:"deliveryFee"`
	Tax             float64       `json:"tax"`
	CouponID        *string       `json:"couponId,omitempty"`
	Locale          string        `json:"locale"`
	PaymentID       *string       `json:"paymentId,omitempty"`
}

// OrderResult is what callers of the order flow receive.
type OrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Order   *Order `json:"order,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Order is a submitted order as reported by the backend.
type Order struct {
	ID            string        `json:"id"`
	Status        string        `json:"status,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	Total         float64       `json:"total"`
	DeliveryFee   float64       `json:"deliveryFee"`
	ItemCount     int           `json:"itemCount"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Product is a catalog product as shown to the storefront.
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Price       float64    `json:"price"`
	SalePrice   *float64   `json:"salePrice,omitempty"`
	Questions   []Question `json:"questions,omitempty"`
}
