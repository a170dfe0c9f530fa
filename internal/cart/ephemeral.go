package cart

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/model"
	"storefront/internal/session"
)

// storedOption mirrors model.DeliveryOption with the rules a restored entry
// must satisfy before it is trusted.
type storedOption struct {
	ID            string   `json:"id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Cost          *float64 `json:"cost" validate:"required,gt=0"`
	Description   string   `json:"description,omitempty"`
	EstimatedDays string   `json:"estimatedDays,omitempty"`
}

type storedCoupon struct {
	ID           string             `json:"id" validate:"required"`
	Code         string             `json:"code" validate:"required"`
	Discount     float64            `json:"discount" validate:"gte=0"`
	DiscountType model.DiscountType `json:"discountType" validate:"omitempty,oneof=percentage fixed"`
	Description  string             `json:"description,omitempty"`
}

// ephemeral holds the selections kept in session storage.
type ephemeral struct {
	deliveryType model.DeliveryType
	option       *model.DeliveryOption
	address      string
	coupon       *model.AppliedCoupon
}

// apply copies the selections onto state. The delivery cost is derived from
// the type and option, keeping prior only for home delivery without an option.
func (e ephemeral) apply(state *model.CartState, prior float64) {
	state.DeliveryType = e.deliveryType
	state.SelectedDeliveryOption = e.option
	state.DeliveryAddress = e.address
	state.AppliedCoupon = e.coupon

	switch {
	case e.deliveryType != model.DeliveryHome:
		state.DeliveryCost = 0
	case e.option != nil:
		state.DeliveryCost = e.option.Cost
	default:
		state.DeliveryCost = prior
	}
}

// restoreEphemeral reads the persisted selections. Corrupt entries are
// removed and treated as absent.
func (s *Store) restoreEphemeral(ctx context.Context) ephemeral {
	e := ephemeral{deliveryType: model.DeliveryCompany}

	var deliveryType model.DeliveryType
	if s.readKey(ctx, session.KeyDeliveryType, &deliveryType) {
		if deliveryType.IsValid() {
			e.deliveryType = deliveryType
		} else {
			s.discard(ctx, session.KeyDeliveryType, errors.New("unknown delivery type"))
		}
	}

	var opt storedOption
	if s.readKey(ctx, session.KeyDeliveryOption, &opt) {
		if err := s.validate.Struct(&opt); err != nil {
			s.discard(ctx, session.KeyDeliveryOption, err)
		} else if e.deliveryType == model.DeliveryHome {
			e.option = &model.DeliveryOption{
				ID:            opt.ID,
				Name:          opt.Name,
				Cost:          *opt.Cost,
				Description:   opt.Description,
				EstimatedDays: opt.EstimatedDays,
			}
		}
	}

	var address string
	if s.readKey(ctx, session.KeyDeliveryAddress, &address) {
		e.address = strings.TrimSpace(address)
	}

	var c storedCoupon
	if s.readKey(ctx, session.KeyAppliedCoupon, &c) {
		if err := s.validate.Struct(&c); err != nil {
			s.discard(ctx, session.KeyAppliedCoupon, err)
		} else {
			e.coupon = &model.AppliedCoupon{
				ID:           c.ID,
				Code:         c.Code,
				Discount:     c.Discount,
				DiscountType: c.DiscountType,
				Description:  c.Description,
			}
		}
	}

	return e
}

// readKey decodes key into dst and reports whether a usable value was found.
func (s *Store) readKey(ctx context.Context, key string, dst any) bool {
	err := session.GetJSON(ctx, s.storage, key, dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, session.ErrNotFound):
		return false
	case errors.Is(err, session.ErrCorrupt):
		s.discard(ctx, key, err)
		return false
	default:
		s.logger.Error().Err(err).Str("key", key).Msg("failed to read session entry")
		return false
	}
}

func (s *Store) discard(ctx context.Context, key string, reason error) {
	s.logger.Warn().Err(reason).Str("key", key).Msg("discarding invalid session entry")
	if err := s.storage.Remove(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to remove session entry")
	}
}

// persist writes value under key, or removes the key when remove is set.
// Storage failures are logged; the in-memory selection stays authoritative.
func (s *Store) persist(ctx context.Context, key string, value any, remove bool) {
	var err error
	if remove {
		err = s.storage.Remove(ctx, key)
	} else {
		err = session.SetJSON(ctx, s.storage, key, value)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to persist session entry")
	}
}
