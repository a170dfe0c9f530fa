package service

import (
	"context"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/identity"
	"storefront/internal/model"
)

// ProductService defines operations for catalog browsing.
type ProductService interface {
	// GetAll retrieves products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product with its configurator questions.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// OrderService defines operations for checkout and order history.
type OrderService interface {
	// CreateOrder submits the visitor's cart as an order. Unauthenticated
	// visitors get model.ErrAuthRequired; a rejected submission is reported
	// in the result and leaves the cart untouched.
	CreateOrder(ctx context.Context, c CartSession, req CheckoutRequest) (*model.OrderResult, error)

	// History lists the authenticated visitor's orders.
	History(ctx context.Context, c CartSession) ([]model.Order, error)
}

// CheckoutRequest carries the caller-supplied checkout fields.
type CheckoutRequest struct {
	PaymentMethod model.PaymentMethod
	PaymentID     *string
	Locale        string
}

// CartSession is the cart store as seen by the order flow.
type CartSession interface {
	IsAuthenticated() bool
	SyncedSnapshot(ctx context.Context) (cart.Snapshot, error)
	Credentials(ctx context.Context) (identity.Credentials, error)
	ClearCart(ctx context.Context) error
	PurgeEphemeral(ctx context.Context)
}

// Catalog is the backend product API.
type Catalog interface {
	GetProducts(ctx context.Context, limit, offset int) ([]backend.Product, error)
	GetProduct(ctx context.Context, id string) (*backend.Product, error)
}

// OrderAPI is the backend order API.
type OrderAPI interface {
	CreateOrder(ctx context.Context, creds identity.Credentials, req model.OrderRequest) (*backend.Order, error)
	ListOrders(ctx context.Context, creds identity.Credentials) ([]backend.Order, error)
}
