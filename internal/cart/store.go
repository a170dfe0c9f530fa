// Package cart holds the per-visitor cart state machine. The backend owns the
// cart lines; delivery and coupon selections live in session storage.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/backend"
	"storefront/internal/coupon"
	"storefront/internal/identity"
	"storefront/internal/model"
	"storefront/internal/session"
	"storefront/internal/transform"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Coupon messages returned to the UI as translation keys.
const (
	MessageCouponApplied          = "cart.coupon.applied"
	MessageCouponInvalid          = "cart.coupon.invalid"
	MessageCouponValidationFailed = "cart.coupon.validationFailed"
)

// ErrDisposed is returned by operations on a disposed store.
var ErrDisposed = errors.New("cart store disposed")

// Backend is the part of the backend API the store talks to.
type Backend interface {
	GetCart(ctx context.Context, creds identity.Credentials) (*backend.Cart, error)
	AddItem(ctx context.Context, creds identity.Credentials, req backend.AddItemRequest) error
	UpdateItemQuantity(ctx context.Context, creds identity.Credentials, itemID string, quantity int) error
	DeleteItem(ctx context.Context, creds identity.Credentials, itemID string) error
	ClearCart(ctx context.Context, creds identity.Credentials) error
	GetDeliverySettings(ctx context.Context) ([]backend.DeliveryCost, error)
}

// AddItemInput describes a product line to add.
type AddItemInput struct {
	ProductID      string
	Price          float64
	SalePrice      *float64
	Quantity       int
	Customizations []model.CartItemCustomization
	Questions      []model.Question
}

// CouponResult is the outcome of ApplyCoupon.
type CouponResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Snapshot is a consistent copy of the store state.
type Snapshot struct {
	model.CartState
	IsInitialized    bool                   `json:"isInitialized"`
	IsLoggedIn       bool                   `json:"isLoggedIn"`
	IsLoading        bool                   `json:"isLoading"`
	CouponStatus     model.CouponStatus     `json:"couponStatus"`
	CouponPercentage float64                `json:"couponPercentage"`
	DeliveryOptions  []model.DeliveryOption `json:"deliveryOptions,omitempty"`
}

// Store is the cart of one visitor. Operations are serialized; Snapshot may
// be read while an operation is in flight.
type Store struct {
	api         Backend
	identity    *identity.Provider
	storage     session.Storage
	coupons     coupon.Validator
	transformer *transform.Transformer
	validate    *validator.Validate
	logger      zerolog.Logger

	// opMu serializes operations; mu guards the fields below.
	opMu sync.Mutex
	mu   sync.RWMutex

	state           model.CartState
	initialized     bool
	loggedIn        bool
	loading         bool
	disposed        bool
	couponStatus    model.CouponStatus
	deliveryOptions []model.DeliveryOption
	// aliases maps the fingerprint of an edited line to the key it had
	// before the edit.
	aliases map[string]string
}

// Deps groups the collaborators of a Store.
type Deps struct {
	API         Backend
	Identity    *identity.Provider
	Storage     session.Storage
	Coupons     coupon.Validator
	Transformer *transform.Transformer
	Logger      zerolog.Logger
}

// NewStore creates an uninitialized store. The login flag starts from the
// identity's current state; a merge still owed from an earlier login runs on
// the first load.
func NewStore(deps Deps) *Store {
	return &Store{
		api:         deps.API,
		identity:    deps.Identity,
		storage:     deps.Storage,
		coupons:     deps.Coupons,
		transformer: deps.Transformer,
		validate:    validator.New(),
		logger:      deps.Logger.With().Str("component", "cart-store").Logger(),
		state:       model.NewCartState(),
		loggedIn:    deps.Identity.IsAuthenticated(),
		aliases:     make(map[string]string),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		CartState:       s.state.Clone(),
		IsInitialized:   s.initialized,
		IsLoggedIn:      s.loggedIn,
		IsLoading:       s.loading,
		CouponStatus:    s.couponStatus,
		DeliveryOptions: append([]model.DeliveryOption(nil), s.deliveryOptions...),
	}
	if s.state.AppliedCoupon != nil {
		snap.CouponPercentage = coupon.DisplayPercentage(*s.state.AppliedCoupon, s.state.Subtotal)
	}
	return snap
}

// IsAuthenticated reports whether the visitor presents a bearer token.
func (s *Store) IsAuthenticated() bool {
	return s.identity.IsAuthenticated()
}

// Credentials returns the identity for the next backend call.
func (s *Store) Credentials(ctx context.Context) (identity.Credentials, error) {
	return s.identity.Credentials(ctx)
}

// InitializeCart loads the cart once. Later calls are no-ops. The store is
// initialized afterwards even when the backend could not be reached.
func (s *Store) InitializeCart(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	_ = s.initialize(ctx)
}

// Reinitialize forces a fresh load from the backend.
func (s *Store) Reinitialize(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()
	return s.initialize(ctx)
}

// SyncedSnapshot returns the state for checkout. A cart without a server id
// is reloaded first. It runs as one operation, so no mutation interleaves
// between the reload and the copy.
func (s *Store) SyncedSnapshot(ctx context.Context) (Snapshot, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkUsable(); err != nil {
		return Snapshot{}, err
	}
	_ = s.initialize(ctx)

	s.mu.RLock()
	synced := s.state.ID != ""
	s.mu.RUnlock()
	if !synced {
		s.mu.Lock()
		s.initialized = false
		s.mu.Unlock()
		if err := s.initialize(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to resync cart before checkout")
		}
	}
	return s.Snapshot(), nil
}

// initialize returns the fetch error, if any. Callers hold opMu.
func (s *Store) initialize(ctx context.Context) error {
	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if done {
		return nil
	}

	s.setLoading(true)
	defer s.setLoading(false)

	eph := s.restoreEphemeral(ctx)
	cart, fetchErr := s.fetch(ctx)
	if fetchErr != nil {
		s.logger.Error().Err(fetchErr).Msg("failed to load cart, starting empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := model.NewCartState()
	if cart != nil {
		next.ID = cart.ID
		next.Items = s.items(cart)
	}
	eph.apply(&next, s.state.DeliveryCost)
	s.state = CalculateTotals(next)
	s.initialized = true

	s.logger.Debug().
		Str("cart_id", s.state.ID).
		Int("total_items", s.state.TotalItems).
		Msg("cart initialized")
	return fetchErr
}

// SetLoggedIn reconciles the store with a login or logout. On login the cart
// is reloaded, which merges the anonymous cart while its id is still stored;
// on logout a fresh anonymous session is started.
func (s *Store) SetLoggedIn(ctx context.Context, loggedIn bool) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.loggedIn == loggedIn {
		s.mu.Unlock()
		return
	}
	s.loggedIn = loggedIn
	s.initialized = false
	s.mu.Unlock()

	if loggedIn {
		err := s.initialize(ctx)
		s.logger.Info().Bool("synced", err == nil).Msg("visitor logged in")
		return
	}

	if _, err := s.identity.Rotate(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to rotate session id")
	}
	_ = s.initialize(ctx)
	s.logger.Info().Msg("visitor logged out")
}

// AddToCart adds a product line. Adding a product with the same
// customizations as an existing line increases that line's quantity.
func (s *Store) AddToCart(ctx context.Context, in AddItemInput) error {
	if in.Quantity <= 0 {
		return model.ErrInvalidQuantity
	}

	return s.mutate(ctx, "add item", func(creds identity.Credentials) error {
		s.mu.RLock()
		var existing *model.CartItem
		for _, item := range s.state.Items {
			if item.ProductID == in.ProductID && SameCustomizations(item.Customizations, in.Customizations) {
				existing = &item
				break
			}
		}
		s.mu.RUnlock()

		if existing != nil {
			return s.api.UpdateItemQuantity(ctx, creds, existing.ID, existing.Quantity+in.Quantity)
		}

		cost := s.transformer.CustomizationCost(in.Customizations, in.Questions)
		return s.api.AddItem(ctx, creds, backend.AddItemRequest{
			ProductID:      in.ProductID,
			Quantity:       in.Quantity,
			UnitPrice:      unitPrice(in.Price, in.SalePrice, cost),
			Customizations: s.transformer.ToBackendCustomizations(in.Customizations, in.Questions),
		})
	})
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line. ref is the line's server id or key.
func (s *Store) UpdateQuantity(ctx context.Context, ref string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, ref)
	}

	return s.mutate(ctx, "update quantity", func(creds identity.Credentials) error {
		item, ok := s.lookup(ref)
		if !ok {
			return model.ErrItemNotFound
		}
		return s.api.UpdateItemQuantity(ctx, creds, item.ID, quantity)
	})
}

// RemoveFromCart deletes a line. ref is the line's server id or key.
func (s *Store) RemoveFromCart(ctx context.Context, ref string) error {
	return s.mutate(ctx, "remove item", func(creds identity.Credentials) error {
		item, ok := s.lookup(ref)
		if !ok {
			return model.ErrItemNotFound
		}
		return s.api.DeleteItem(ctx, creds, item.ID)
	})
}

// UpdateItemCustomizations replaces the customizations of a line by deleting
// and re-adding it. The server id changes; the key is kept. When another line
// already has the new configuration the edited line is folded into it and
// that line's key survives.
func (s *Store) UpdateItemCustomizations(ctx context.Context, ref string, customizations []model.CartItemCustomization) error {
	return s.mutate(ctx, "update customizations", func(creds identity.Credentials) error {
		item, ok := s.lookup(ref)
		if !ok {
			return model.ErrItemNotFound
		}

		if target, ok := s.sameConfiguration(item, customizations); ok {
			if err := s.api.DeleteItem(ctx, creds, item.ID); err != nil {
				return err
			}
			if err := s.api.UpdateItemQuantity(ctx, creds, target.ID, target.Quantity+item.Quantity); err != nil {
				if refreshErr := s.refresh(ctx); refreshErr != nil {
					s.logger.Error().Err(refreshErr).Msg("failed to refresh cart after partial edit")
				}
				return err
			}
			return nil
		}

		cost := s.transformer.CustomizationCost(customizations, item.Questions)
		req := backend.AddItemRequest{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPrice:      unitPrice(item.Price, item.SalePrice, cost),
			Customizations: s.transformer.ToBackendCustomizations(customizations, item.Questions),
		}

		if err := s.api.DeleteItem(ctx, creds, item.ID); err != nil {
			return err
		}
		if err := s.api.AddItem(ctx, creds, req); err != nil {
			// The old line is gone; refresh so state reflects the backend.
			if refreshErr := s.refresh(ctx); refreshErr != nil {
				s.logger.Error().Err(refreshErr).Msg("failed to refresh cart after partial edit")
			}
			return err
		}

		s.mu.Lock()
		s.aliases[ItemKey(item.ProductID, customizations)] = item.Key
		s.mu.Unlock()
		return nil
	})
}

// sameConfiguration finds a line other than item with the same product and
// customizations.
func (s *Store) sameConfiguration(item model.CartItem, customizations []model.CartItemCustomization) (model.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, other := range s.state.Items {
		if other.ID != item.ID && other.ProductID == item.ProductID && SameCustomizations(other.Customizations, customizations) {
			return other, true
		}
	}
	return model.CartItem{}, false
}

// ClearCart removes every line. Delivery and coupon selections are kept.
func (s *Store) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, "clear cart", func(creds identity.Credentials) error {
		if err := s.api.ClearCart(ctx, creds); err != nil {
			return err
		}
		s.mu.Lock()
		s.state.Items = []model.CartItem{}
		s.state = CalculateTotals(s.state)
		s.aliases = make(map[string]string)
		s.mu.Unlock()
		return nil
	})
}

// mutate runs a backend write followed by a full refresh. State is left
// untouched when the write fails.
func (s *Store) mutate(ctx context.Context, op string, write func(identity.Credentials) error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkUsable(); err != nil {
		return err
	}
	_ = s.initialize(ctx)

	s.setLoading(true)
	defer s.setLoading(false)

	creds, err := s.identity.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve identity: %w", err)
	}

	if err := write(creds); err != nil {
		var domainErr *model.DomainError
		if !errors.As(err, &domainErr) {
			s.logger.Error().Err(err).Str("operation", op).Msg("cart operation failed")
			return fmt.Errorf("failed to %s: %w", op, err)
		}
		return err
	}

	if err := s.refresh(ctx); err != nil {
		s.logger.Error().Err(err).Str("operation", op).Msg("failed to refresh cart")
		return fmt.Errorf("failed to refresh cart after %s: %w", op, err)
	}
	return nil
}

// refresh replaces the lines with the backend's view, keeping the
// ephemeral selections.
func (s *Store) refresh(ctx context.Context) error {
	cart, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.ID = cart.ID
	s.state.Items = s.items(cart)
	s.state = CalculateTotals(s.state)
	return nil
}

func (s *Store) fetch(ctx context.Context) (*backend.Cart, error) {
	creds, err := s.identity.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}
	cart, err := s.api.GetCart(ctx, creds)
	if err != nil {
		return nil, err
	}
	if creds.Authenticated() && creds.SessionID != "" {
		if err := s.identity.CompleteMerge(ctx, creds.SessionID); err != nil {
			s.logger.Error().Err(err).Msg("failed to complete cart merge")
		}
	}
	if cart == nil {
		return &backend.Cart{}, nil
	}
	return cart, nil
}

// items converts backend lines and assigns keys. Callers hold mu.
func (s *Store) items(cart *backend.Cart) []model.CartItem {
	items := make([]model.CartItem, 0, len(cart.Items))
	seen := make(map[string]bool, len(cart.Items))
	for _, raw := range cart.Items {
		item := s.transformer.CartItem(raw)
		fingerprint := ItemKey(item.ProductID, item.Customizations)
		item.Key = fingerprint
		if key, ok := s.aliases[fingerprint]; ok {
			item.Key = key
		}
		seen[fingerprint] = true
		items = append(items, item)
	}
	for fingerprint := range s.aliases {
		if !seen[fingerprint] {
			delete(s.aliases, fingerprint)
		}
	}
	return items
}

// lookup finds a line by server id, then by key.
func (s *Store) lookup(ref string) (model.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.state.FindItem(ref); i >= 0 {
		return s.state.Items[i], true
	}
	for _, item := range s.state.Items {
		if item.Key == ref {
			return item, true
		}
	}
	return model.CartItem{}, false
}

// SetDeliveryType switches between company pickup and home delivery.
func (s *Store) SetDeliveryType(ctx context.Context, t model.DeliveryType) error {
	if !t.IsValid() {
		return model.ErrInvalidDeliveryType
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.state.DeliveryType = t
	if t == model.DeliveryCompany {
		s.state.SelectedDeliveryOption = nil
	}
	s.state = CalculateTotals(s.state)
	s.mu.Unlock()

	s.persist(ctx, session.KeyDeliveryType, t, false)
	if t == model.DeliveryCompany {
		s.persist(ctx, session.KeyDeliveryOption, nil, true)
	}
	return nil
}

// SetDeliveryOption selects a delivery tier by id from the fetched options.
func (s *Store) SetDeliveryOption(ctx context.Context, optionID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	options := s.deliveryOptions
	s.mu.RUnlock()
	if len(options) == 0 {
		fetched, err := s.FetchDeliveryOptions(ctx)
		if err != nil {
			return err
		}
		options = fetched
	}

	var selected *model.DeliveryOption
	for _, opt := range options {
		if opt.ID == optionID {
			selected = &opt
			break
		}
	}
	if selected == nil {
		return model.ErrOptionNotFound
	}

	s.mu.Lock()
	s.state.SelectedDeliveryOption = selected
	s.state = CalculateTotals(s.state)
	s.mu.Unlock()

	s.persist(ctx, session.KeyDeliveryOption, selected, false)
	return nil
}

// SetDeliveryAddress stores the home delivery address.
func (s *Store) SetDeliveryAddress(ctx context.Context, address string) {
	address = strings.TrimSpace(address)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.state.DeliveryAddress = address
	s.mu.Unlock()

	s.persist(ctx, session.KeyDeliveryAddress, address, address == "")
}

// FetchDeliveryOptions loads the delivery tiers. Options without a backend
// id get a positional "delivery-{index}" id, which is only stable while the
// backend list is unchanged.
func (s *Store) FetchDeliveryOptions(ctx context.Context) ([]model.DeliveryOption, error) {
	costs, err := s.api.GetDeliverySettings(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch delivery options")
		return nil, fmt.Errorf("failed to fetch delivery options: %w", err)
	}

	options := make([]model.DeliveryOption, 0, len(costs))
	for i, c := range costs {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("delivery-%d", i)
		}
		options = append(options, model.DeliveryOption{
			ID:            id,
			Name:          c.Name,
			Cost:          c.Cost.InexactFloat64(),
			Description:   c.Description,
			EstimatedDays: string(c.EstimatedDays),
		})
	}

	s.mu.Lock()
	s.deliveryOptions = options
	s.mu.Unlock()

	return append([]model.DeliveryOption(nil), options...), nil
}

// ApplyCoupon validates code against the current subtotal and applies it.
// Failures are reported in the result and in the coupon status.
func (s *Store) ApplyCoupon(ctx context.Context, code, locale string) CouponResult {
	s.mu.RLock()
	loggedIn := s.loggedIn
	s.mu.RUnlock()
	if !loggedIn {
		return s.couponFailed(model.ErrCouponLoginRequired.Message)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.couponStatus = model.CouponStatus{IsValidating: true}
	subtotal := s.state.Subtotal
	s.mu.Unlock()

	creds, err := s.identity.Credentials(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to resolve identity")
		return s.couponFailed(MessageCouponValidationFailed)
	}

	result, err := s.coupons.Validate(ctx, creds, code, subtotal, locale)
	if err != nil {
		return s.couponFailed(MessageCouponValidationFailed)
	}
	if !result.IsValid {
		msg := result.Message
		if msg == "" {
			msg = MessageCouponInvalid
		}
		return s.couponFailed(msg)
	}

	s.mu.Lock()
	s.state.AppliedCoupon = result.Coupon
	s.state = CalculateTotals(s.state)
	s.couponStatus = model.CouponStatus{}
	s.mu.Unlock()

	s.persist(ctx, session.KeyAppliedCoupon, result.Coupon, false)

	msg := result.Message
	if msg == "" {
		msg = MessageCouponApplied
	}
	s.logger.Info().Str("coupon_code", result.Coupon.Code).Float64("discount", result.Discount).Msg("coupon applied")
	return CouponResult{Success: true, Message: msg}
}

func (s *Store) couponFailed(msg string) CouponResult {
	s.mu.Lock()
	s.couponStatus = model.CouponStatus{Error: msg}
	s.mu.Unlock()
	return CouponResult{Message: msg}
}

// RemoveCoupon clears the applied coupon.
func (s *Store) RemoveCoupon(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.state.AppliedCoupon = nil
	s.state = CalculateTotals(s.state)
	s.couponStatus = model.CouponStatus{}
	s.mu.Unlock()

	s.persist(ctx, session.KeyAppliedCoupon, nil, true)
}

// PurgeEphemeral forgets every delivery and coupon selection, in memory and
// in session storage.
func (s *Store) PurgeEphemeral(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.state.DeliveryType = model.DeliveryCompany
	s.state.SelectedDeliveryOption = nil
	s.state.DeliveryAddress = ""
	s.state.AppliedCoupon = nil
	s.state = CalculateTotals(s.state)
	s.couponStatus = model.CouponStatus{}
	s.mu.Unlock()

	for _, key := range session.CartKeys {
		s.persist(ctx, key, nil, true)
	}
}

// Dispose releases the in-memory state. Session storage is left intact so a
// new store for the same visitor restores the selections.
func (s *Store) Dispose() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.disposed = true
	s.state = model.NewCartState()
	s.deliveryOptions = nil
	s.aliases = make(map[string]string)
	s.mu.Unlock()
}

func (s *Store) checkUsable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disposed {
		return ErrDisposed
	}
	return nil
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

