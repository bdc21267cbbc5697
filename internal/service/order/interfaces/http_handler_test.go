// internal/service/order/interfaces/http_handler_test.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atlas/internal/service/order/application"
	"atlas/internal/service/order/application/saga"
	"atlas/internal/service/order/domain/port"
	"atlas/internal/service/order/infrastructure"

	"go.opentelemetry.io/otel"
)

type stubCart struct{}

func (stubCart) GetCart(ctx context.Context, userID, token string) (*port.Cart, error) {
	return &port.Cart{CartID: "cart-1", Items: []port.CartItem{{ProductID: "A", Quantity: 2, Price: 750}}}, nil
}
func (stubCart) Validate(ctx context.Context, cartID, token string) (*port.ValidationResult, error) {
	return &port.ValidationResult{Valid: true}, nil
}
func (stubCart) Clear(ctx context.Context, cartID, token string) error { return nil }

type stubCatalog struct{}

func (stubCatalog) GetProduct(ctx context.Context, productID, token string) (*port.Product, error) {
	return &port.Product{ProductID: productID, Category: "general"}, nil
}

type stubShipping struct{}

func (stubShipping) CalculateShipping(ctx context.Context, q port.ShippingQuery, token string) (*port.ShippingQuote, error) {
	return &port.ShippingQuote{Cost: 200, EstimatedDays: 3}, nil
}

type stubPayment struct{}

func (stubPayment) Create(ctx context.Context, amount int64, currency, token string) (*port.PaymentOrder, error) {
	return &port.PaymentOrder{OrderID: "pay-1", ApprovalLink: "https://pay.example/approve"}, nil
}
func (stubPayment) Capture(ctx context.Context, externalOrderID, token string) (*port.CaptureResult, error) {
	return &port.CaptureResult{Status: "COMPLETED"}, nil
}

type stubStock struct{}

func (stubStock) Reserve(ctx context.Context, productID, orderID string, quantity int, ttl time.Duration) error {
	return nil
}
func (stubStock) Release(ctx context.Context, productID, orderID string) error { return nil }
func (stubStock) Reduce(ctx context.Context, productID, orderID string, quantity int) error {
	return nil
}
func (stubStock) Restore(ctx context.Context, productID string, quantity int) error { return nil }

func newOrderServer(t *testing.T) *httptest.Server {
	t.Helper()
	orders := infrastructure.NewMemoryOrderRepository()
	tracer := otel.Tracer("order-test")
	orch := saga.NewOrchestrator(saga.Deps{
		Orders:   orders,
		Cart:     stubCart{},
		Catalog:  stubCatalog{},
		Shipping: stubShipping{},
		Payment:  stubPayment{},
		Stock:    stubStock{},
		Locker:   infrastructure.NewLocalLocker(),
		Tracer:   tracer,
	})
	service := application.NewService(orch, orders, tracer, 10*time.Second)

	mux := http.NewServeMux()
	NewOrderHandler(service).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv := newOrderServer(t)

	// 下单
	resp := postJSON(t, srv.URL+"/orders", `{"userId": "user-1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: status %d", resp.StatusCode)
	}
	var created saga.CreateOrderResult
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	// 2*750 + 200 运费
	if created.TotalAmount != 1700 || created.ApprovalLink == "" {
		t.Fatalf("unexpected create result: %+v", created)
	}

	// 查询
	getResp, err := http.Get(srv.URL + "/orders/" + created.OrderID)
	if err != nil {
		t.Fatalf("GET order: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get order: status %d", getResp.StatusCode)
	}
	var fetched struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if fetched.Status != "PENDING" {
		t.Fatalf("expected pending order, got %s", fetched.Status)
	}

	// 扣款完成
	resp = postJSON(t, srv.URL+"/orders/"+created.OrderID+"/capture", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("capture: status %d", resp.StatusCode)
	}
	var outcome saga.CaptureOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode capture outcome: %v", err)
	}
	if !outcome.Completed {
		t.Fatalf("expected completed outcome: %+v", outcome)
	}

	// 终态订单的取消是无害请求
	resp = postJSON(t, srv.URL+"/orders/"+created.OrderID+"/cancel", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel terminal order: status %d", resp.StatusCode)
	}
	var cancelled saga.CancelOutcome
	if err := json.NewDecoder(resp.Body).Decode(&cancelled); err != nil {
		t.Fatalf("decode cancel outcome: %v", err)
	}
	if cancelled.Cancelled || !strings.Contains(cancelled.Message, "completed") {
		t.Fatalf("unexpected cancel outcome: %+v", cancelled)
	}
}

func TestCreateOrderRequiresUserID(t *testing.T) {
	srv := newOrderServer(t)
	resp := postJSON(t, srv.URL+"/orders", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestGetUnknownOrderReturns404(t *testing.T) {
	srv := newOrderServer(t)
	resp, err := http.Get(srv.URL + "/orders/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestCancelUnknownOrderReturns400(t *testing.T) {
	srv := newOrderServer(t)
	resp := postJSON(t, srv.URL+"/orders/missing/cancel", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestCODOrderOverHTTP(t *testing.T) {
	srv := newOrderServer(t)
	resp := postJSON(t, srv.URL+"/orders/cod", `{"userId": "user-1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("cod order: status %d", resp.StatusCode)
	}
	var result saga.CODOrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode cod result: %v", err)
	}
	if result.TotalAmount != 1700 {
		t.Fatalf("unexpected total %d", result.TotalAmount)
	}
}
