package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// FakeBackend is an in-memory storefront backend speaking the REST API the
// BFF consumes. Carts are owned by "user:<token>" or "anon:<session id>".
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	seq      int
	products map[string]backend.Product
	carts    map[string]*backend.Cart
	orders   map[string][]backend.Order
	merges    int
	lastOrder model.OrderRequest
}

// NewFakeBackend starts a fake backend seeded with two products.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		products: map[string]backend.Product{
			"prod-1": {
				ID:            "prod-1",
				Name:          "Mug",
				Price:         decimal.NewFromInt(100),
				ImagePublicID: "mugs/1",
				Questions: []backend.Question{{
					ID:           "q-size",
					Type:         "select",
					QuestionText: "Size",
					Answers: []backend.Answer{
						{ID: "a-small", AnswerText: "Small", ExtraPrice: decimal.NewNullDecimal(decimal.Zero)},
						{ID: "a-large", AnswerText: "Large", ExtraPrice: decimal.NewNullDecimal(decimal.NewFromInt(10))},
					},
				}},
			},
			"prod-2": {
				ID:        "prod-2",
				Name:      "Tee",
				Price:     decimal.NewFromInt(50),
				SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(40)),
			},
		},
		carts:  make(map[string]*backend.Cart),
		orders: make(map[string][]backend.Order),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", f.listProducts)
	mux.HandleFunc("GET /products/{id}", f.getProduct)
	mux.HandleFunc("GET /carts", f.getCart)
	mux.HandleFunc("DELETE /carts", f.clearCart)
	mux.HandleFunc("POST /carts/items", f.addItem)
	mux.HandleFunc("PUT /carts/items/{id}", f.updateItem)
	mux.HandleFunc("DELETE /carts/items/{id}", f.deleteItem)
	mux.HandleFunc("GET /settings/delivery", f.deliverySettings)
	mux.HandleFunc("POST /coupons/validate", f.validateCoupon)
	mux.HandleFunc("POST /orders", f.createOrder)
	mux.HandleFunc("GET /orders", f.listOrders)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Cart returns a copy of the cart owned by owner.
func (f *FakeBackend) Cart(owner string) (backend.Cart, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[owner]
	if !ok {
		return backend.Cart{}, false
	}
	return *c, true
}

// Merges counts anonymous carts folded into a user cart.
func (f *FakeBackend) Merges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merges
}

// LastOrder returns the body of the most recent order submission.
func (f *FakeBackend) LastOrder() model.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOrder
}

func (f *FakeBackend) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeBody(w, status, map[string]string{"message": message})
}

// owner resolves the cart owner and merges an anonymous cart into the user
// cart when both identity headers are present. Callers hold mu.
func (f *FakeBackend) owner(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	sid := r.Header.Get("X-Session-ID")

	switch {
	case token != "" && sid != "":
		user := "user:" + token
		if anon, ok := f.carts["anon:"+sid]; ok {
			f.merges++
			cart := f.cartOf(user)
			cart.Items = append(cart.Items, anon.Items...)
			delete(f.carts, "anon:"+sid)
		}
		return user, true
	case token != "":
		return "user:" + token, true
	case sid != "":
		return "anon:" + sid, true
	default:
		return "", false
	}
}

func (f *FakeBackend) cartOf(owner string) *backend.Cart {
	c, ok := f.carts[owner]
	if !ok {
		c = &backend.Cart{ID: f.nextID("cart"), Items: []backend.CartItem{}, CreatedAt: time.Now()}
		f.carts[owner] = c
	}
	return c
}

func (f *FakeBackend) listProducts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []backend.Product{f.products["prod-1"], f.products["prod-2"]}
	writeBody(w, http.StatusOK, map[string]any{"data": out})
}

func (f *FakeBackend) getProduct(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[r.PathValue("id")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}
	writeBody(w, http.StatusOK, map[string]any{"data": p})
}

func (f *FakeBackend) getCart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owner(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "identity required")
		return
	}
	writeBody(w, http.StatusOK, f.cartOf(owner))
}

func (f *FakeBackend) clearCart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owner(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "identity required")
		return
	}
	f.cartOf(owner).Items = []backend.CartItem{}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeBackend) addItem(w http.ResponseWriter, r *http.Request) {
	var req backend.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owner(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "identity required")
		return
	}
	p, ok := f.products[req.ProductID]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}

	item := backend.CartItem{
		ID:        f.nextID("item"),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: decimal.NewNullDecimal(decimal.NewFromFloat(req.UnitPrice)),
		Product:   &p,
	}
	for _, c := range req.Customizations {
		item.Customizations = append(item.Customizations, backend.Customization{
			ID:                         f.nextID("cust"),
			OptionID:                   c.OptionID,
			QuestionText:               c.QuestionText,
			SelectedAnswer:             c.SelectedAnswer,
			CustomerInput:              c.CustomerInput,
			SelectedValueImageURL:      c.SelectedValueImageURL,
			SelectedValueImagePublicID: c.SelectedValueImagePublicID,
			FileURL:                    c.FileURL,
			FilePublicID:               c.FilePublicID,
			AdditionalPrice:            decimal.NewNullDecimal(decimal.NewFromFloat(c.AdditionalPrice)),
		})
	}

	cart := f.cartOf(owner)
	cart.Items = append(cart.Items, item)
	writeBody(w, http.StatusCreated, map[string]any{"data": item})
}

func (f *FakeBackend) updateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity < 1 {
		writeMessage(w, http.StatusBadRequest, "invalid quantity")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owner(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "identity required")
		return
	}
	cart := f.cartOf(owner)
	for i := range cart.Items {
		if cart.Items[i].ID == r.PathValue("id") {
			cart.Items[i].Quantity = req.Quantity
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Item not found")
}

func (f *FakeBackend) deleteItem(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owner(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "identity required")
		return
	}
	cart := f.cartOf(owner)
	for i := range cart.Items {
		if cart.Items[i].ID == r.PathValue("id") {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Item not found")
}

func (f *FakeBackend) deliverySettings(w http.ResponseWriter, r *http.Request) {
	writeBody(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"deliveryCosts": []map[string]any{
				{"name": "Riyadh", "cost": "25.00", "estimatedDays": 2},
				{"name": "Other cities", "cost": "45.00", "estimatedDays": "3-5"},
			},
		},
	})
}

func (f *FakeBackend) validateCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeMessage(w, http.StatusUnauthorized, "login required")
		return
	}

	var req backend.CouponValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Code != "SAVE10" {
		writeBody(w, http.StatusBadRequest, map[string]any{"isValid": false, "message": "Coupon not found"})
		return
	}

	discount := decimal.NewFromFloat(req.OrderTotal).Mul(decimal.NewFromFloat(0.1)).Round(2)
	writeBody(w, http.StatusOK, map[string]any{
		"isValid":  true,
		"discount": discount.String(),
		"coupon":   map[string]any{"id": "coupon-1", "code": "SAVE10", "discountType": "percentage"},
	})
}

func (f *FakeBackend) createOrder(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "login required")
		return
	}
	cart, ok := f.carts["user:"+token]
	if !ok || cart.ID != req.CartID || len(cart.Items) == 0 {
		writeMessage(w, http.StatusBadRequest, "Cart not found")
		return
	}

	total := decimal.NewFromFloat(req.DeliveryFee)
	items := make([]json.RawMessage, 0, len(cart.Items))
	for _, item := range cart.Items {
		total = total.Add(item.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
		raw, _ := json.Marshal(item)
		items = append(items, raw)
	}

	order := backend.Order{
		ID:            f.nextID("order"),
		Status:        "pending",
		PaymentMethod: string(req.PaymentMethod),
		TotalAmount:   decimal.NewNullDecimal(total),
		DeliveryFee:   decimal.NewNullDecimal(decimal.NewFromFloat(req.DeliveryFee)),
		Items:         items,
		CreatedAt:     time.Now(),
	}
	f.orders[token] = append(f.orders[token], order)
	f.lastOrder = req
	writeBody(w, http.StatusCreated, map[string]any{"data": order})
}

func (f *FakeBackend) listOrders(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "login required")
		return
	}
	writeBody(w, http.StatusOK, map[string]any{"data": f.orders[token]})
}
