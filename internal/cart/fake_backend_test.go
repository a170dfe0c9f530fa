package cart

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"storefront/internal/backend"
	"storefront/internal/coupon"
	"storefront/internal/identity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type call struct {
	op    string
	creds identity.Credentials
}

// fakeBackend keeps one cart per identity and merges the anonymous cart into
// the user's cart when both identity headers are sent.
type fakeBackend struct {
	mu       sync.Mutex
	carts    map[string]*backend.Cart
	products map[string]backend.Product
	delivery []backend.DeliveryCost
	calls    []call
	lastAdd  backend.AddItemRequest
	nextID   int

	failGet      error
	failAdd      error
	failDelivery error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		carts: make(map[string]*backend.Cart),
		products: map[string]backend.Product{
			"prod-1": {
				ID:    "prod-1",
				Name:  "Custom Mug",
				Price: decimal.NewFromInt(100),
				Questions: []backend.Question{
					{
						ID:           "q-size",
						Type:         "select",
						QuestionText: "Size",
						Answers: []backend.Answer{
							{ID: "a-small", AnswerText: "Small", ExtraPrice: decimal.NewNullDecimal(decimal.Zero)},
							{ID: "a-large", AnswerText: "Large", ExtraPrice: decimal.NewNullDecimal(decimal.NewFromInt(10))},
						},
					},
					{
						ID:           "q-name",
						Type:         "text",
						QuestionText: "Name",
						ExtraPrice:   decimal.NewNullDecimal(decimal.NewFromInt(5)),
					},
				},
			},
			"prod-2": {
				ID:        "prod-2",
				Name:      "Tee",
				Price:     decimal.NewFromInt(50),
				SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(40)),
			},
		},
	}
}

func owner(creds identity.Credentials) string {
	if creds.Token != "" {
		return "user:" + creds.Token
	}
	return "anon:" + creds.SessionID
}

func (f *fakeBackend) cart(key string) *backend.Cart {
	c, ok := f.carts[key]
	if !ok {
		f.nextID++
		c = &backend.Cart{ID: fmt.Sprintf("cart-%d", f.nextID)}
		f.carts[key] = c
	}
	return c
}

func (f *fakeBackend) record(op string, creds identity.Credentials) {
	f.calls = append(f.calls, call{op: op, creds: creds})
}

func (f *fakeBackend) callsFor(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) GetCart(_ context.Context, creds identity.Credentials) (*backend.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get", creds)
	if f.failGet != nil {
		return nil, f.failGet
	}

	c := f.cart(owner(creds))
	if creds.Token != "" && creds.SessionID != "" {
		anonKey := "anon:" + creds.SessionID
		if anon, ok := f.carts[anonKey]; ok {
			c.Items = append(c.Items, anon.Items...)
			delete(f.carts, anonKey)
		}
	}

	out := *c
	out.Items = append([]backend.CartItem(nil), c.Items...)
	return &out, nil
}

func (f *fakeBackend) AddItem(_ context.Context, creds identity.Credentials, req backend.AddItemRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add", creds)
	if f.failAdd != nil {
		return f.failAdd
	}
	f.lastAdd = req

	product := f.products[req.ProductID]
	item := backend.CartItem{
		ID:        fmt.Sprintf("item-%d", len(f.calls)),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: decimal.NewNullDecimal(decimal.NewFromFloat(req.UnitPrice)),
		Product:   &product,
	}
	for _, p := range req.Customizations {
		item.Customizations = append(item.Customizations, backend.Customization{
			OptionID:        p.OptionID,
			QuestionText:    p.QuestionText,
			SelectedAnswer:  p.SelectedAnswer,
			CustomerInput:   p.CustomerInput,
			AdditionalPrice: decimal.NewNullDecimal(decimal.NewFromFloat(p.AdditionalPrice)),
		})
	}

	c := f.cart(owner(creds))
	c.Items = append(c.Items, item)
	return nil
}

func (f *fakeBackend) UpdateItemQuantity(_ context.Context, creds identity.Credentials, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update", creds)

	c := f.cart(owner(creds))
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return &backend.APIError{StatusCode: http.StatusNotFound, Message: "item not found"}
}

func (f *fakeBackend) DeleteItem(_ context.Context, creds identity.Credentials, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete", creds)

	c := f.cart(owner(creds))
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return &backend.APIError{StatusCode: http.StatusNotFound, Message: "item not found"}
}

func (f *fakeBackend) ClearCart(_ context.Context, creds identity.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clear", creds)
	f.cart(owner(creds)).Items = nil
	return nil
}

func (f *fakeBackend) GetDeliverySettings(_ context.Context) ([]backend.DeliveryCost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivery, f.failDelivery
}

// MockValidator is a mock implementation of coupon.Validator.
type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(ctx context.Context, creds identity.Credentials, code string, orderTotal float64, locale string) (*coupon.Result, error) {
	args := m.Called(ctx, creds, code, orderTotal, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Result), args.Error(1)
}
