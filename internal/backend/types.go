package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Text decodes a JSON string or number into a string. The backend is not
// consistent about fields such as estimatedDays.
type Text string

// UnmarshalJSON accepts strings, numbers and null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("text field must be a string or number: %w", err)
	}
	*t = Text(n.String())
	return nil
}

// Cart is the backend cart as returned by GET /carts.
type Cart struct {
	ID        string     `json:"id" validate:"required"`
	UserID    *string    `json:"userId,omitempty"`
	SessionID *string    `json:"sessionId,omitempty"`
	Items     []CartItem `json:"items" validate:"dive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem is a backend cart line. Prices arrive as decimal strings.
type CartItem struct {
	ID             string              `json:"id" validate:"required"`
	ProductID      string              `json:"productId" validate:"required"`
	Quantity       int                 `json:"quantity" validate:"gte=1"`
	UnitPrice      decimal.NullDecimal `json:"unitPrice"`
	Product        *Product            `json:"product,omitempty"`
	Customizations []Customization     `json:"customizations" validate:"dive"`
}

// Product is a catalog product, optionally nested inside a cart line.
type Product struct {
	ID            string              `json:"id" validate:"required"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	ImageURL      string              `json:"imageUrl"`
	ImagePublicID string              `json:"imagePublicId"`
	Questions     []Question          `json:"questions" validate:"dive"`
}

// Question is a product configurator question definition.
type Question struct {
	ID           string              `json:"id" validate:"required"`
	Type         string              `json:"type"`
	QuestionText string              `json:"questionText"`
	Required     bool                `json:"required"`
	ExtraPrice   decimal.NullDecimal `json:"extraPrice"`
	Answers      []Answer            `json:"answers" validate:"dive"`
}

// Answer is a predefined answer of a select or checkbox question.
type Answer struct {
	ID         string              `json:"id" validate:"required"`
	AnswerText string              `json:"answerText"`
	ExtraPrice decimal.NullDecimal `json:"extraPrice"`
	ImageURL   string              `json:"imageUrl"`
}

// Customization is one answered question on a backend cart line.
type Customization struct {
	ID                         string              `json:"id"`
	OptionID                   string              `json:"optionId" validate:"required"`
	QuestionText               string              `json:"questionText"`
	SelectedAnswer             string              `json:"selectedAnswer"`
	CustomerInput              string              `json:"customerInput"`
	SelectedValueImageURL      string              `json:"selectedValueImageUrl"`
	SelectedValueImagePublicID string              `json:"selectedValueImagePublicId"`
	FileURL                    string              `json:"fileUrl"`
	FilePublicID               string              `json:"filePublicId"`
	AdditionalPrice            decimal.NullDecimal `json:"additionalPrice"`
	Question                   *Question           `json:"question,omitempty"`
}

// CustomizationPayload is an outgoing customization on add/update requests.
type CustomizationPayload struct {
	OptionID                   string  `json:"optionId"`
	QuestionText               string  `json:"questionText"`
	SelectedAnswer             string  `json:"selectedAnswer,omitempty"`
	CustomerInput              string  `json:"customerInput,omitempty"`
	SelectedValueImageURL      string  `json:"selectedValueImageUrl,omitempty"`
	SelectedValueImagePublicID string  `json:"selectedValueImagePublicId,omitempty"`
	FileURL                    string  `json:"fileUrl,omitempty"`
	FilePublicID               string  `json:"filePublicId,omitempty"`
	AdditionalPrice            float64 `json:"additionalPrice"`
}

// AddItemRequest is the body of POST /carts/items.
type AddItemRequest struct {
	ProductID      string                 `json:"productId"`
	Quantity       int                    `json:"quantity"`
	UnitPrice      float64                `json:"unitPrice"`
	Customizations []CustomizationPayload `json:"customizations"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// DeliveryCost is one delivery tier from GET /settings/delivery.
type DeliveryCost struct {
	ID            string          `json:"id"`
	Name          string          `json:"name" validate:"required"`
	Cost          decimal.Decimal `json:"cost"`
	Description   string          `json:"description"`
	EstimatedDays Text            `json:"estimatedDays"`
}

type deliverySettingsResponse struct {
	Data struct {
		DeliveryCosts []DeliveryCost `json:"deliveryCosts" validate:"dive"`
	} `json:"data"`
}

// CouponValidationRequest is sent to the coupon validation endpoint.
// OrderTotal is the pre-discount subtotal, excluding delivery.
type CouponValidationRequest struct {
	Code       string  `json:"code"`
	OrderTotal float64 `json:"orderTotal"`
	Locale     string  `json:"locale"`
}

// CouponValidation is the response of the coupon validation endpoint.
type CouponValidation struct {
	IsValid  bool            `json:"isValid"`
	Coupon   *CouponInfo     `json:"coupon,omitempty"`
	Discount decimal.Decimal `json:"discount"`
	Message  string          `json:"message"`
}

// CouponInfo describes the validated coupon.
type CouponInfo struct {
	ID           string `json:"id" validate:"required"`
	Code         string `json:"code"`
	DiscountType string `json:"discountType" validate:"omitempty,oneof=percentage fixed"`
	Description  string `json:"description"`
}

// Order is an order as returned by the backend.
type Order struct {
	ID            string              `json:"id" validate:"required"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"paymentMethod"`
	TotalAmount   decimal.NullDecimal `json:"totalAmount"`
	DeliveryFee   decimal.NullDecimal `json:"deliveryFee"`
	Items         []json.RawMessage   `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
}

type orderEnvelope struct {
	Data Order `json:"data"`
}

type ordersEnvelope struct {
	Data []Order `json:"data" validate:"dive"`
}

type productEnvelope struct {
	Data Product `json:"data"`
}

type productsEnvelope struct {
	Data []Product `json:"data" validate:"dive"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
