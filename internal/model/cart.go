package model

// DeliveryType selects how an order reaches the customer.
type DeliveryType string

const (
	// DeliveryCompany is free pickup from the company.
	DeliveryCompany DeliveryType = "company"
	// DeliveryHome is paid delivery to an address.
	DeliveryHome DeliveryType = "home"
)

// IsValid checks if the delivery type is known.
func (t DeliveryType) IsValid() bool {
	switch t {
	case DeliveryCompany, DeliveryHome:
		return true
	default:
		return false
	}
}

// DiscountType describes how a coupon was defined on the backend.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// CartItemCustomization is one answered product question on a cart line.
// Exactly one value group is populated depending on the question type.
type CartItemCustomization struct {
	QuestionID    string `json:"questionId"`
	QuestionText  string `json:"questionText,omitempty"`
	AnswerID      string `json:"answerId,omitempty"`
	AnswerText    string `json:"answerText,omitempty"`
	TextValue     string `json:"textValue,omitempty"`
	ImagePublicID string `json:"imagePublicId,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	FileURL       string `json:"fileUrl,omitempty"`
	FilePublicID  string `json:"filePublicId,omitempty"`
}

// CartItem is a line in the cart.
type CartItem struct {
	// ID is assigned by the backend and changes when customizations are edited.
	ID string `json:"id,omitempty"`
	// Key identifies the line from the caller's side and is stable across edits.
	Key               string                  `json:"key"`
	ProductID         string                  `json:"productId"`
	Name              string                  `json:"name"`
	Description       string                  `json:"description,omitempty"`
	ImageURL          string                  `json:"imageUrl,omitempty"`
	Price             float64                 `json:"price"`
	SalePrice         *float64                `json:"salePrice,omitempty"`
	UnitPrice         *float64                `json:"unitPrice,omitempty"`
	Quantity          int                     `json:"quantity"`
	Customizations    []CartItemCustomization `json:"customizations,omitempty"`
	CustomizationCost float64                 `json:"customizationCost"`
	Questions         []Question              `json:"questions,omitempty"`
}

// LinePrice returns the per-unit price charged for the line.
func (i CartItem) LinePrice() float64 {
	if i.UnitPrice != nil {
		return *i.UnitPrice
	}
	if i.SalePrice != nil {
		return *i.SalePrice
	}
	return i.Price + i.CustomizationCost
}

// DeliveryOption is a shipping tier offered for home delivery.
type DeliveryOption struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Cost          float64 `json:"cost"`
	Description   string  `json:"description,omitempty"`
	EstimatedDays string  `json:"estimatedDays,omitempty"`
}

// AppliedCoupon is the currently active discount.
// Discount is always an absolute amount, even for percentage coupons.
type AppliedCoupon struct {
	ID           string       `json:"id"`
	Code         string       `json:"code"`
	Discount     float64      `json:"discount"`
	DiscountType DiscountType `json:"discountType"`
	Description  string       `json:"description,omitempty"`
}

// CouponStatus tracks an in-flight or failed coupon validation.
type CouponStatus struct {
	IsValidating bool   `json:"isValidating"`
	Error        string `json:"error,omitempty"`
}

// CartState is the aggregate root of the cart. Subtotal, TotalItems and
// TotalPrice are derived and only correct after totals were recalculated.
type CartState struct {
	ID                     string          `json:"id,omitempty"`
	Items                  []CartItem      `json:"items"`
	DeliveryType           DeliveryType    `json:"deliveryType"`
	DeliveryCost           float64         `json:"deliveryCost"`
	SelectedDeliveryOption *DeliveryOption `json:"selectedDeliveryOption,omitempty"`
	DeliveryAddress        string          `json:"deliveryAddress,omitempty"`
	AppliedCoupon          *AppliedCoupon  `json:"appliedCoupon,omitempty"`
	CouponDiscount         float64         `json:"couponDiscount"`
	Subtotal               float64         `json:"subtotal"`
	TotalItems             int             `json:"totalItems"`
	TotalPrice             float64         `json:"totalPrice"`
}

// NewCartState returns an empty cart with company pickup selected.
func NewCartState() CartState {
	return CartState{
		Items:        []CartItem{},
		DeliveryType: DeliveryCompany,
	}
}

// Clone returns a deep copy safe to hand out to callers.
func (s CartState) Clone() CartState {
	out := s
	out.Items = make([]CartItem, len(s.Items))
	for i, item := range s.Items {
		item.Customizations = append([]CartItemCustomization(nil), item.Customizations...)
		item.Questions = append([]Question(nil), item.Questions...)
		out.Items[i] = item
	}
	if s.SelectedDeliveryOption != nil {
		opt := *s.SelectedDeliveryOption
		out.SelectedDeliveryOption = &opt
	}
	if s.AppliedCoupon != nil {
		c := *s.AppliedCoupon
		out.AppliedCoupon = &c
	}
	return out
}

// FindItem returns the index of the line with the given server id, or -1.
func (s CartState) FindItem(id string) int {
	for i, item := range s.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
