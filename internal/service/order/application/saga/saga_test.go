// internal/service/order/application/saga/saga_test.go
package saga

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/domain/port"
	"atlas/internal/service/order/infrastructure"

	"go.opentelemetry.io/otel"
)

type fakeCart struct {
	mu         sync.Mutex
	carts      map[string]*port.Cart // keyed by userID
	validation *port.ValidationResult
	cleared    []string
}

func (f *fakeCart) GetCart(ctx context.Context, userID, token string) (*port.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[userID], nil
}

func (f *fakeCart) Validate(ctx context.Context, cartID, token string) (*port.ValidationResult, error) {
	if f.validation != nil {
		return f.validation, nil
	}
	return &port.ValidationResult{Valid: true}, nil
}

func (f *fakeCart) Clear(ctx context.Context, cartID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, cartID)
	return nil
}

type fakeCatalog struct{}

func (f *fakeCatalog) GetProduct(ctx context.Context, productID, token string) (*port.Product, error) {
	return &port.Product{ProductID: productID, Category: "general"}, nil
}

type fakeShipping struct {
	cost int64
}

func (f *fakeShipping) CalculateShipping(ctx context.Context, q port.ShippingQuery, token string) (*port.ShippingQuote, error) {
	return &port.ShippingQuote{Cost: f.cost, EstimatedDays: 5}, nil
}

type fakePayment struct {
	mu        sync.Mutex
	createErr error
	captureErr error
	created   []int64
	captured  []string
}

func (f *fakePayment) Create(ctx context.Context, amount int64, currency, token string) (*port.PaymentOrder, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, amount)
	return &port.PaymentOrder{OrderID: fmt.Sprintf("pay-%d", len(f.created)), ApprovalLink: "https://pay.example/approve"}, nil
}

func (f *fakePayment) Capture(ctx context.Context, externalOrderID, token string) (*port.CaptureResult, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, externalOrderID)
	return &port.CaptureResult{Status: "COMPLETED"}, nil
}

type fakeStock struct {
	mu         sync.Mutex
	reserveErr map[string]error // keyed by productID
	reduceErr  map[string]error
	reserved   []string
	released   []string
	reduced    []string
	restored   []string

	lastOrderID string
}

func newFakeStock() *fakeStock {
	return &fakeStock{reserveErr: map[string]error{}, reduceErr: map[string]error{}}
}

func (f *fakeStock) Reserve(ctx context.Context, productID, orderID string, quantity int, ttl time.Duration) error {
	f.mu.Lock()
	f.lastOrderID = orderID
	f.mu.Unlock()
	if err := f.reserveErr[productID]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserved = append(f.reserved, productID)
	return nil
}

func (f *fakeStock) Release(ctx context.Context, productID, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, productID)
	return nil
}

func (f *fakeStock) Reduce(ctx context.Context, productID, orderID string, quantity int) error {
	if err := f.reduceErr[productID]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reduced = append(f.reduced, productID)
	return nil
}

func (f *fakeStock) Restore(ctx context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, productID)
	return nil
}

func (f *fakeStock) snapshotReleased() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.released...)
	sort.Strings(out)
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.OrderEvent
}

func (f *fakePublisher) Publish(ctx context.Context, event *domain.OrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = string(e.Type)
	}
	return out
}

type fixture struct {
	orders    *infrastructure.MemoryOrderRepository
	cart      *fakeCart
	payment   *fakePayment
	stock     *fakeStock
	publisher *fakePublisher
	orch      *Orchestrator
}

func defaultCart() *port.Cart {
	return &port.Cart{
		CartID: "cart-1",
		Items: []port.CartItem{
			{ProductID: "A", Quantity: 1, Price: 1000},
			{ProductID: "B", Quantity: 2, Price: 500},
		},
	}
}

func newFixture() *fixture {
	f := &fixture{
		orders:    infrastructure.NewMemoryOrderRepository(),
		cart:      &fakeCart{carts: map[string]*port.Cart{"user-1": defaultCart()}},
		payment:   &fakePayment{},
		stock:     newFakeStock(),
		publisher: &fakePublisher{},
	}
	f.orch = NewOrchestrator(Deps{
		Orders:         f.orders,
		Cart:           f.cart,
		Catalog:        &fakeCatalog{},
		Shipping:       &fakeShipping{cost: 100},
		Payment:        f.payment,
		Stock:          f.stock,
		Publisher:      f.publisher,
		Locker:         infrastructure.NewLocalLocker(),
		Tracer:         otel.Tracer("saga-test"),
		ReservationTTL: 15 * time.Minute,
	})
	return f
}

func createInput() CreateOrderInput {
	return CreateOrderInput{UserID: "user-1", AccessToken: "token"}
}

func TestCreateOrderHappyPath(t *testing.T) {
	f := newFixture()

	result, err := f.orch.CreateOrder(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// 2 件商品 + 每件运费 100：1000 + 2*500 + 2*100 = 2200
	if result.TotalAmount != 2200 {
		t.Fatalf("expected total 2200, got %d", result.TotalAmount)
	}
	if result.ApprovalLink == "" || result.PaymentReference == "" {
		t.Fatalf("expected payment handoff in result: %+v", result)
	}

	order, err := f.orders.FindByID(context.Background(), result.OrderID)
	if err != nil || order == nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if order.Status != domain.StatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if len(f.payment.created) != 1 || f.payment.created[0] != 2200 {
		t.Fatalf("unexpected payment creation: %v", f.payment.created)
	}
	if len(f.stock.reserved) != 2 {
		t.Fatalf("expected 2 reservations, got %v", f.stock.reserved)
	}
}

func TestCreateOrderEmptyCartConflicts(t *testing.T) {
	f := newFixture()
	f.cart.carts["user-1"] = &port.Cart{CartID: "cart-1"}

	_, err := f.orch.CreateOrder(context.Background(), createInput())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for empty cart, got %v", err)
	}
	if len(f.payment.created) != 0 {
		t.Fatalf("payment must not be created for empty cart")
	}
}

func TestCreateOrderAdoptsRevalidatedPrices(t *testing.T) {
	f := newFixture()
	f.cart.validation = &port.ValidationResult{
		Valid:       true,
		CartUpdated: true,
		UpdatedItems: []port.CartItem{
			{ProductID: "A", Quantity: 1, Price: 1200},
		},
	}

	result, err := f.orch.CreateOrder(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	// 采用更新后的单行：1200 + 100 运费
	if result.TotalAmount != 1300 {
		t.Fatalf("expected total 1300 from revalidated prices, got %d", result.TotalAmount)
	}
}

func TestCreateOrderInvalidCartFails(t *testing.T) {
	f := newFixture()
	f.cart.validation = &port.ValidationResult{Valid: false, Errors: []string{"product A out of stock"}}

	_, err := f.orch.CreateOrder(context.Background(), createInput())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateOrderReserveFailureCompensatesInOrder(t *testing.T) {
	f := newFixture()
	f.cart.carts["user-1"] = &port.Cart{
		CartID: "cart-1",
		Items: []port.CartItem{
			{ProductID: "A", Quantity: 1, Price: 100},
			{ProductID: "B", Quantity: 1, Price: 100},
			{ProductID: "C", Quantity: 1, Price: 100},
		},
	}
	f.stock.reserveErr["C"] = apperr.Conflict("insufficient stock for product C")

	_, err := f.orch.CreateOrder(context.Background(), createInput())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// 成功的预占（A、B）必须被释放
	released := f.stock.snapshotReleased()
	if len(released) != 2 || released[0] != "A" || released[1] != "B" {
		t.Fatalf("expected A and B released, got %v", released)
	}

	// 已落库的订单必须被标记取消
	order := f.findOnlyOrder(t)
	if order.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled order after compensation, got %s", order.Status)
	}
}

// findOnlyOrder 借助预占调用里记录的订单号取出唯一的测试订单。
func (f *fixture) findOnlyOrder(t *testing.T) *domain.Order {
	t.Helper()
	f.stock.mu.Lock()
	id := f.stock.lastOrderID
	f.stock.mu.Unlock()
	if id == "" {
		t.Fatalf("no reservation was attempted, cannot locate order")
	}
	order, err := f.orders.FindByID(context.Background(), id)
	if err != nil || order == nil {
		t.Fatalf("order %s not persisted: %v", id, err)
	}
	return order
}

func (f *fixture) seedPendingOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("user-1", domain.PaymentMethodPaypal, []domain.OrderItem{
		{ProductID: "A", Quantity: 1, UnitPrice: 1000, ShippingMode: domain.ShippingModeStandard, ShippingCost: 100},
		{ProductID: "B", Quantity: 2, UnitPrice: 500, ShippingMode: domain.ShippingModeStandard, ShippingCost: 100},
	})
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	order.AttachPayment("pay-1")
	if err := f.orders.Save(context.Background(), order); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return order
}

func TestCapturePaymentHappyPath(t *testing.T) {
	f := newFixture()
	order := f.seedPendingOrder(t)

	outcome, err := f.orch.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID, AccessToken: "token"})
	if err != nil {
		t.Fatalf("CapturePayment: %v", err)
	}
	if !outcome.Completed {
		t.Fatalf("expected completed outcome, got %+v", outcome)
	}

	stored, _ := f.orders.FindByID(context.Background(), order.ID)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("expected completed order, got %s", stored.Status)
	}
	if len(f.payment.captured) != 1 || f.payment.captured[0] != "pay-1" {
		t.Fatalf("unexpected captures: %v", f.payment.captured)
	}
	if len(f.stock.reduced) != 2 {
		t.Fatalf("expected both items reduced, got %v", f.stock.reduced)
	}
	if len(f.cart.cleared) != 1 {
		t.Fatalf("expected cart cleared once, got %v", f.cart.cleared)
	}
	if types := f.publisher.types(); len(types) != 1 || types[0] != string(domain.EventOrderCompleted) {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestCapturePaymentFailureAbortsWithoutSideEffects(t *testing.T) {
	f := newFixture()
	order := f.seedPendingOrder(t)
	f.payment.captureErr = apperr.External("payment provider unavailable")

	_, err := f.orch.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID})
	if !errors.Is(err, apperr.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}

	stored, _ := f.orders.FindByID(context.Background(), order.ID)
	if stored.Status != domain.StatusPending {
		t.Fatalf("order must stay pending on capture failure, got %s", stored.Status)
	}
	if len(f.stock.reduced) != 0 {
		t.Fatalf("no stock must be reduced, got %v", f.stock.reduced)
	}
}

func TestCapturePaymentExpiredReservation(t *testing.T) {
	f := newFixture()
	order := f.seedPendingOrder(t)
	f.stock.reduceErr["B"] = apperr.ReservationExpired("no active reservation for product B order %s", order.ID)

	_, err := f.orch.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID})
	if !errors.Is(err, apperr.ErrReservationExpired) {
		t.Fatalf("expected reservation expired, got %v", err)
	}

	stored, _ := f.orders.FindByID(context.Background(), order.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("expected failed order after post-capture failure, got %s", stored.Status)
	}

	// A 可能已被扣减，必须被回补；所有残余预占都要释放
	f.stock.mu.Lock()
	reduced := append([]string(nil), f.stock.reduced...)
	restored := append([]string(nil), f.stock.restored...)
	f.stock.mu.Unlock()
	if len(restored) != len(reduced) {
		t.Fatalf("every reduce must be restored: reduced=%v restored=%v", reduced, restored)
	}
	if types := f.publisher.types(); len(types) != 1 || types[0] != string(domain.EventOrderFailed) {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestCapturePaymentTerminalOrderIsIdempotent(t *testing.T) {
	f := newFixture()
	order := f.seedPendingOrder(t)
	if _, err := f.orders.UpdateStatus(context.Background(), order.ID,
		[]domain.Status{domain.StatusPending}, domain.StatusCancelled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	outcome, err := f.orch.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("CapturePayment on terminal order: %v", err)
	}
	if outcome.Completed || outcome.Message != "order already cancelled" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(f.payment.captured) != 0 {
		t.Fatalf("must not capture a terminal order")
	}
}

func TestCancelOrderReleasesAndIsIdempotent(t *testing.T) {
	f := newFixture()
	order := f.seedPendingOrder(t)

	outcome, err := f.orch.CancelOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if !outcome.Cancelled {
		t.Fatalf("expected cancelled outcome, got %+v", outcome)
	}

	released := f.stock.snapshotReleased()
	if len(released) != 2 {
		t.Fatalf("expected both reservations released, got %v", released)
	}
	stored, _ := f.orders.FindByID(context.Background(), order.ID)
	if stored.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled order, got %s", stored.Status)
	}

	// 二次取消：非错误，告知已是终态
	again, err := f.orch.CancelOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("second CancelOrder: %v", err)
	}
	if again.Cancelled || again.Message != "order already cancelled" {
		t.Fatalf("unexpected second outcome: %+v", again)
	}
}

func TestCancelUnknownOrderFails(t *testing.T) {
	f := newFixture()
	_, err := f.orch.CancelOrder(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCODOrderHappyPath(t *testing.T) {
	f := newFixture()

	result, err := f.orch.CreateCODOrder(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreateCODOrder: %v", err)
	}
	if result.TotalAmount != 2200 {
		t.Fatalf("expected total 2200, got %d", result.TotalAmount)
	}

	stored, _ := f.orders.FindByID(context.Background(), result.OrderID)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("cod order must complete immediately, got %s", stored.Status)
	}
	if stored.PaymentMethod != domain.PaymentMethodCOD {
		t.Fatalf("unexpected payment method %s", stored.PaymentMethod)
	}
	if len(f.payment.created) != 0 {
		t.Fatalf("cod order must not create a payment")
	}
	if len(f.stock.reserved) != 2 || len(f.stock.reduced) != 2 {
		t.Fatalf("expected reserve+reduce per item, got reserved=%v reduced=%v", f.stock.reserved, f.stock.reduced)
	}
	if types := f.publisher.types(); len(types) != 1 || types[0] != string(domain.EventOrderCompleted) {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestCreateCODOrderReduceFailureCancels(t *testing.T) {
	f := newFixture()
	f.stock.reduceErr["B"] = apperr.Conflict("ledger unavailable")

	_, err := f.orch.CreateCODOrder(context.Background(), createInput())
	if err == nil {
		t.Fatalf("expected error")
	}

	order := f.findOnlyOrder(t)
	if order.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled cod order, got %s", order.Status)
	}
	// 全部预占都被释放（包括失败项之前成功的）
	if len(f.stock.snapshotReleased()) == 0 {
		t.Fatalf("expected reservations released on compensation")
	}
}

func TestConcurrentCaptureAndCancelHasOneWinner(t *testing.T) {
	f := newFixture()
	order := f.seedPendingOrder(t)

	var wg sync.WaitGroup
	var captureOutcome *CaptureOutcome
	var cancelOutcome *CancelOutcome
	var captureErr, cancelErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		captureOutcome, captureErr = f.orch.CapturePayment(context.Background(), CaptureInput{OrderID: order.ID})
	}()
	go func() {
		defer wg.Done()
		cancelOutcome, cancelErr = f.orch.CancelOrder(context.Background(), order.ID)
	}()
	wg.Wait()

	if captureErr != nil || cancelErr != nil {
		t.Fatalf("both operations must resolve without error: capture=%v cancel=%v", captureErr, cancelErr)
	}

	stored, _ := f.orders.FindByID(context.Background(), order.ID)
	if !stored.Status.Terminal() || stored.Status == domain.StatusFailed {
		t.Fatalf("expected a clean terminal state, got %s", stored.Status)
	}

	// 恰好一方胜出
	if captureOutcome.Completed == cancelOutcome.Cancelled {
		t.Fatalf("exactly one of capture/cancel must win: capture=%+v cancel=%+v", captureOutcome, cancelOutcome)
	}
	if captureOutcome.Completed && stored.Status != domain.StatusCompleted {
		t.Fatalf("capture won but order is %s", stored.Status)
	}
	if cancelOutcome.Cancelled && stored.Status != domain.StatusCancelled {
		t.Fatalf("cancel won but order is %s", stored.Status)
	}
}
