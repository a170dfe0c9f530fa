package cart

import (
	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// CalculateTotals recomputes every derived field of the cart. It is the only
// place subtotal, delivery cost, coupon discount and total are set.
func CalculateTotals(state model.CartState) model.CartState {
	subtotal := decimal.Zero
	totalItems := 0
	for _, item := range state.Items {
		line := decimal.NewFromFloat(item.LinePrice()).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		totalItems += item.Quantity
	}

	switch {
	case state.DeliveryType != model.DeliveryHome:
		state.DeliveryCost = 0
	case state.SelectedDeliveryOption != nil:
		state.DeliveryCost = state.SelectedDeliveryOption.Cost
	}

	state.CouponDiscount = 0
	if state.AppliedCoupon != nil {
		state.CouponDiscount = state.AppliedCoupon.Discount
	}

	total := subtotal.
		Add(decimal.NewFromFloat(state.DeliveryCost)).
		Sub(decimal.NewFromFloat(state.CouponDiscount))
	total = decimal.Max(total, decimal.Zero)

	state.Subtotal = subtotal.Round(2).InexactFloat64()
	state.TotalItems = totalItems
	state.TotalPrice = total.Round(2).InexactFloat64()
	return state
}

// unitPrice is the price sent to the backend for a new line.
func unitPrice(price float64, salePrice *float64, customizationCost float64) float64 {
	base := decimal.NewFromFloat(price)
	if salePrice != nil {
		base = decimal.NewFromFloat(*salePrice)
	}
	return base.Add(decimal.NewFromFloat(customizationCost)).Round(2).InexactFloat64()
}
