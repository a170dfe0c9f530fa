// Package session provides per-visitor session storage: a small key/value
// namespace holding ephemeral selections that ride alongside the
// server-owned cart contents.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by the cart store.
const (
	KeySessionID       = "cart_session_id"
	KeyDeliveryType    = "cart_delivery_type"
	KeyDeliveryOption  = "cart_delivery_option"
	KeyDeliveryAddress = "cart_delivery_address"
	KeyAppliedCoupon   = "cart_applied_coupon"
)

// CartKeys lists every cart-related key purged after a successful order.
var CartKeys = []string{KeyDeliveryType, KeyDeliveryOption, KeyDeliveryAddress, KeyAppliedCoupon}

var (
	// ErrNotFound is returned by GetJSON when the key is absent.
	ErrNotFound = errors.New("session key not found")
	// ErrCorrupt is returned by GetJSON when the stored value does not decode.
	ErrCorrupt = errors.New("session value corrupt")
)

// Storage is a key/value store scoped to one visitor.
type Storage interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the value under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Backend hands out storage scoped to a namespace, usually a visitor id.
type Backend interface {
	Scope(namespace string) Storage
}

// GetJSON decodes the JSON value stored under key into dst.
func GetJSON(ctx context.Context, s Storage, key string, dst any) error {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: key %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

// SetJSON stores v under key as JSON.
func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode session key %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
