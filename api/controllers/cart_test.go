package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/mercadito-pesca/mercadito-backend/internal/cart"
	checkoutsvc "github.com/mercadito-pesca/mercadito-backend/internal/checkout"
	ordersvc "github.com/mercadito-pesca/mercadito-backend/internal/orders"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
)

type stubCartService struct {
	cart        *cartsvc.CartDTO
	err         error
	lastUser    uuid.UUID
	lastProduct uuid.UUID
	lastQty     int
	cleared     bool
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastUser = userID
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.lastUser, s.lastProduct, s.lastQty = userID, productID, quantity
	return s.cart, s.err
}

func (s *stubCartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.lastUser, s.lastProduct, s.lastQty = userID, productID, quantity
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.lastUser, s.lastProduct = userID, productID
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) error {
	s.lastUser = userID
	s.cleared = true
	return s.err
}

func TestCartFetch(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{ID: uuid.New(), TotalItems: 3, TotalPrice: decimal.RequireFromString("45.00")}}
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID, enums.RoleCustomer)

	resp := serve(CartFetch(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastUser != userID {
		t.Fatalf("cart fetched for wrong user")
	}
	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.TotalItems != 3 {
		t.Fatalf("unexpected cart %+v", envelope.Data)
	}
}

func TestCartFetchMissingUser(t *testing.T) {
	resp := serve(CartFetch(&stubCartService{}, nil), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if decodeError(t, resp).Code != string(pkgerrors.CodeUnauthorized) {
		t.Fatalf("unexpected error code")
	}
}

func TestCartAddItem(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{}}
	body := `{"product_id":"` + productID.String() + `","quantity":2}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New(), enums.RoleCustomer)

	resp := serve(CartAddItem(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastProduct != productID || svc.lastQty != 2 {
		t.Fatalf("unexpected add call %s x%d", svc.lastProduct, svc.lastQty)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New(), enums.RoleCustomer)

	resp := serve(CartAddItem(&stubCartService{}, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddItemSurfacesStockConflict(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":9}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New(), enums.RoleCustomer)

	resp := serve(CartAddItem(svc, nil), req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartUpdateAndRemoveItem(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.CartDTO{}}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+productID.String(), strings.NewReader(`{"quantity":5}`))
	req = withActor(withURLParam(req, "productID", productID.String()), uuid.New(), enums.RoleCustomer)
	if resp := serve(CartUpdateItem(svc, nil), req); resp.Code != http.StatusOK {
		t.Fatalf("update: expected 200 got %d", resp.Code)
	}
	if svc.lastProduct != productID || svc.lastQty != 5 {
		t.Fatalf("unexpected update call")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/bad", nil)
	req = withActor(withURLParam(req, "productID", "bad"), uuid.New(), enums.RoleCustomer)
	if resp := serve(CartRemoveItem(svc, nil), req); resp.Code != http.StatusBadRequest {
		t.Fatalf("remove: expected 400 got %d", resp.Code)
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	req := withActor(httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil), uuid.New(), enums.RoleCustomer)

	resp := serve(CartClear(svc, nil), req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if !svc.cleared {
		t.Fatalf("cart not cleared")
	}
}

type stubCheckoutService struct {
	result *checkoutsvc.Result
	err    error
	input  checkoutsvc.Input
	calls  int
}

func (s *stubCheckoutService) Checkout(ctx context.Context, userID uuid.UUID, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	s.calls++
	s.input = input
	return s.result, s.err
}

func TestCheckoutCreatesOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubCheckoutService{result: &checkoutsvc.Result{Order: ordersvc.OrderDTO{ID: orderID}}}
	body := `{"shipping_address":"Av. del Puerto 45","phone":"+54 223 555","notes":"tarde"}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)), uuid.New(), enums.RoleCustomer)

	resp := serve(Checkout(svc, nil), req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.input.ShippingAddress != "Av. del Puerto 45" || svc.input.Notes != "tarde" {
		t.Fatalf("unexpected input %+v", svc.input)
	}
	var envelope struct {
		Data checkoutsvc.Result `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Order.ID != orderID {
		t.Fatalf("unexpected order %s", envelope.Data.Order.ID)
	}
}

func TestCheckoutRequiresShippingAddress(t *testing.T) {
	svc := &stubCheckoutService{}
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"shipping_address":" "}`)), uuid.New(), enums.RoleCustomer)

	resp := serve(Checkout(svc, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called")
	}
}

func TestCheckoutSurfacesStockConflict(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
		WithDetails(map[string]any{"product_id": uuid.NewString()})}
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"shipping_address":"Muelle 3"}`)), uuid.New(), enums.RoleCustomer)

	resp := serve(Checkout(svc, nil), req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if apiErr := decodeError(t, resp); apiErr.Details == nil {
		t.Fatalf("expected conflict details")
	}
}
