package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	ordersvc "github.com/mercadito-pesca/mercadito-backend/internal/orders"
	quotesvc "github.com/mercadito-pesca/mercadito-backend/internal/quotes"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/pagination"
	"github.com/mercadito-pesca/mercadito-backend/pkg/types"
)

type stubOrderService struct {
	order      *ordersvc.OrderDTO
	err        error
	lastFilter ordersvc.ListFilter
	lastActor  types.Actor
	lastInput  ordersvc.UpdateStatusInput
	calls      int
}

func (s *stubOrderService) List(ctx context.Context, actor types.Actor, filter ordersvc.ListFilter, params pagination.Params) (types.Page[ordersvc.OrderDTO], error) {
	s.lastActor = actor
	s.lastFilter = filter
	return types.Page[ordersvc.OrderDTO]{}, s.err
}

func (s *stubOrderService) Get(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*ordersvc.OrderDTO, error) {
	s.lastActor = actor
	return s.order, s.err
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, actor types.Actor, input ordersvc.UpdateStatusInput) (*ordersvc.OrderDTO, error) {
	s.calls++
	s.lastActor = actor
	s.lastInput = input
	return s.order, s.err
}

func TestOrderListParsesStaffFilter(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?all=true&status=shipped", nil)
	req = withActor(req, uuid.New(), enums.RoleStaff)

	resp := serve(OrderList(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.lastFilter.All || svc.lastFilter.Status == nil || *svc.lastFilter.Status != enums.OrderStatusShipped {
		t.Fatalf("unexpected filter %+v", svc.lastFilter)
	}
	if !svc.lastActor.IsStaff() {
		t.Fatalf("actor role not forwarded")
	}
}

func TestOrderListRejectsUnknownStatus(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=lost", nil), uuid.New(), enums.RoleCustomer)
	resp := serve(OrderList(&stubOrderService{}, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderDetailForbidden(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = withActor(withURLParam(req, "orderID", orderID.String()), uuid.New(), enums.RoleCustomer)

	resp := serve(OrderDetail(svc, nil), req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestOrderUpdateStatus(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{order: &ordersvc.OrderDTO{ID: orderID, Status: enums.OrderStatusCancelled}}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"cancelled","force":true}`))
	req = withActor(withURLParam(req, "orderID", orderID.String()), uuid.New(), enums.RoleStaff)

	resp := serve(OrderUpdateStatus(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	want := ordersvc.UpdateStatusInput{OrderID: orderID, Status: enums.OrderStatusCancelled, Force: true}
	if svc.lastInput != want {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
}

func TestOrderUpdateStatusRejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"teleported"}`))
	req = withActor(withURLParam(req, "orderID", orderID.String()), uuid.New(), enums.RoleStaff)

	resp := serve(OrderUpdateStatus(svc, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be called")
	}
}

type stubQuoteService struct {
	quote      *quotesvc.QuoteDTO
	doc        *quotesvc.Document
	err        error
	lastNotes  string
	lastStatus enums.QuoteStatus
}

func (s *stubQuoteService) Generate(ctx context.Context, userID uuid.UUID, notes string) (*quotesvc.GenerateResult, error) {
	s.lastNotes = notes
	if s.err != nil {
		return nil, s.err
	}
	return &quotesvc.GenerateResult{Quote: *s.quote}, nil
}

func (s *stubQuoteService) Get(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*quotesvc.QuoteDTO, error) {
	return s.quote, s.err
}

func (s *stubQuoteService) List(ctx context.Context, actor types.Actor, params pagination.Params) (types.Page[quotesvc.QuoteDTO], error) {
	return types.Page[quotesvc.QuoteDTO]{}, s.err
}

func (s *stubQuoteService) PDF(ctx context.Context, actor types.Actor, quoteID uuid.UUID) (*quotesvc.Document, error) {
	return s.doc, s.err
}

func (s *stubQuoteService) UpdateStatus(ctx context.Context, actor types.Actor, quoteID uuid.UUID, status enums.QuoteStatus) (*quotesvc.QuoteDTO, error) {
	s.lastStatus = status
	return s.quote, s.err
}

func TestQuoteGenerateAcceptsEmptyBody(t *testing.T) {
	svc := &stubQuoteService{quote: &quotesvc.QuoteDTO{ID: uuid.New()}}
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil), uuid.New(), enums.RoleCustomer)

	resp := serve(QuoteGenerate(svc, nil), req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	req = withActor(httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{"notes":"  para el sábado "}`)), uuid.New(), enums.RoleCustomer)
	resp = serve(QuoteGenerate(svc, nil), req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastNotes != "para el sábado" {
		t.Fatalf("unexpected notes %q", svc.lastNotes)
	}
}

func TestQuoteGenerateEmptyCart(t *testing.T) {
	svc := &stubQuoteService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil), uuid.New(), enums.RoleCustomer)

	resp := serve(QuoteGenerate(svc, nil), req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if msg := decodeError(t, resp).Message; msg != "cart is empty" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestQuotePDFDownload(t *testing.T) {
	quoteID := uuid.New()
	svc := &stubQuoteService{doc: &quotesvc.Document{Filename: "cotizacion.pdf", Content: []byte("%PDF-1.3")}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+quoteID.String()+"/pdf", nil)
	req = withActor(withURLParam(req, "quoteID", quoteID.String()), uuid.New(), enums.RoleCustomer)

	resp := serve(QuotePDF(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "cotizacion.pdf") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !strings.HasPrefix(resp.Body.String(), "%PDF") {
		t.Fatalf("unexpected body")
	}
}

func TestQuoteUpdateStatus(t *testing.T) {
	quoteID := uuid.New()
	svc := &stubQuoteService{quote: &quotesvc.QuoteDTO{ID: quoteID, Status: enums.QuoteStatusAccepted}}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/quotes/"+quoteID.String()+"/status", strings.NewReader(`{"status":"accepted"}`))
	req = withActor(withURLParam(req, "quoteID", quoteID.String()), uuid.New(), enums.RoleCustomer)

	resp := serve(QuoteUpdateStatus(svc, nil), req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastStatus != enums.QuoteStatusAccepted {
		t.Fatalf("unexpected status %q", svc.lastStatus)
	}
}
