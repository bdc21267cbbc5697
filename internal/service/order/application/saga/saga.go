// internal/service/order/application/saga/saga.go
//
// 订单 Saga 编排器。四个流程（创建、扣款、取消、货到付款）共享同一套
// 补偿纪律：每个产生副作用的步骤成功后立刻登记一个补偿步骤；后续任何
// 步骤失败时，按 LIFO 顺序执行全部已登记的补偿，然后把原始错误原样
// 抛给调用方。补偿是显式的带标签的值，由唯一的逆序执行器解释，
// 不依赖闭包捕获可变状态。
package saga

import (
	"context"
	"sync"
	"time"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/trace"
)

// CompensationKind 标识一种补偿操作。
type CompensationKind int

const (
	// CompReleaseReservation 释放 (productID, orderID) 的库存预占
	CompReleaseReservation CompensationKind = iota
	// CompRestoreStock 回补已永久扣减的在库数量
	CompRestoreStock
	// CompCancelPaymentNote 支付单无法保证干净撤销，只能记录等待人工退款/作废
	CompCancelPaymentNote
	// CompMarkOrderCancelled 把订单标记为已取消
	CompMarkOrderCancelled
)

func (k CompensationKind) String() string {
	switch k {
	case CompReleaseReservation:
		return "ReleaseReservation"
	case CompRestoreStock:
		return "RestoreStock"
	case CompCancelPaymentNote:
		return "CancelPaymentNote"
	case CompMarkOrderCancelled:
		return "MarkOrderCancelled"
	default:
		return "Unknown"
	}
}

// CompensationStep 是一条已登记的补偿。字段按 Kind 取用。
type CompensationStep struct {
	Kind       CompensationKind
	OrderID    string
	ProductID  string
	PaymentRef string
	Quantity   int
}

// compensator 收集一次 Saga 执行期间登记的补偿步骤。
// 并行 fan-out 的步骤会并发登记，push 必须是并发安全的。
type compensator struct {
	mu    sync.Mutex
	steps []CompensationStep
}

func (c *compensator) push(step CompensationStep) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step)
}

func (c *compensator) drain() []CompensationStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	steps := c.steps
	c.steps = nil
	return steps
}

// Deps 是编排器的全部出站依赖。
type Deps struct {
	Orders    domain.OrderRepository
	Cart      port.CartService
	Catalog   port.CatalogService
	Shipping  port.ShippingService
	Payment   port.PaymentService
	Stock     port.StockService
	Publisher port.OrderEventPublisher
	Scheduler port.DelayScheduler
	Locker    port.Locker
	Tracer    trace.Tracer

	ReservationTTL time.Duration
	Currency       string
}

// Orchestrator 执行订单相关的全部 Saga 流程。
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator 创建编排器。Publisher/Scheduler/Locker 可以为 nil（按特性开关装配）。
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.ReservationTTL <= 0 {
		deps.ReservationTTL = 15 * time.Minute
	}
	if deps.Currency == "" {
		deps.Currency = "USD"
	}
	return &Orchestrator{deps: deps}
}

// unwind 逆序执行全部已登记的补偿。
// 使用与调用方取消解耦的 context：触发补偿的失败可能正是 ctx 超时本身，
// 补偿不能因此跟着夭折。补偿失败只记录，绝不覆盖原始错误。
func (o *Orchestrator) unwind(ctx context.Context, comp *compensator) {
	steps := comp.drain()
	if len(steps) == 0 {
		return
	}

	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	compCtx, span := o.deps.Tracer.Start(compCtx, "saga.Compensate")
	defer span.End()

	logger.Ctx(compCtx).Info().Int("steps", len(steps)).Msg("executing compensation steps")
	for i := len(steps) - 1; i >= 0; i-- {
		o.compensate(compCtx, steps[i])
	}
}

func (o *Orchestrator) compensate(ctx context.Context, step CompensationStep) {
	ctx, span := o.deps.Tracer.Start(ctx, "saga.compensation."+step.Kind.String())
	defer span.End()

	var err error
	switch step.Kind {
	case CompReleaseReservation:
		err = o.deps.Stock.Release(ctx, step.ProductID, step.OrderID)

	case CompRestoreStock:
		err = o.deps.Stock.Restore(ctx, step.ProductID, step.Quantity)

	case CompCancelPaymentNote:
		// 支付单创建后无法保证干净撤销：显式留痕，等待人工退款/作废
		logger.Ctx(ctx).Warn().
			Str("order_id", step.OrderID).
			Str("payment_ref", step.PaymentRef).
			Msg("payment order requires manual void/refund review")

	case CompMarkOrderCancelled:
		_, err = o.deps.Orders.UpdateStatus(ctx, step.OrderID,
			[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusCancelled)
	}

	if err != nil {
		// 补偿失败是严重问题，需要人工介入，但不中断其余补偿
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("step", step.Kind.String()).
			Str("order_id", step.OrderID).
			Msg("compensation step failed, manual intervention may be required")
	}
}

// publish 发布订单事件，失败只记录。
func (o *Orchestrator) publish(ctx context.Context, event *domain.OrderEvent) {
	if o.deps.Publisher == nil {
		return
	}
	if err := o.deps.Publisher.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", event.OrderID).
			Str("event", string(event.Type)).
			Msg("failed to publish order event")
	}
}

// withOrderLock 在订单锁内执行 fn；未配置 Locker 时直接执行。
func (o *Orchestrator) withOrderLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	if o.deps.Locker == nil {
		return fn(ctx)
	}
	return o.deps.Locker.WithLock(ctx, "order-"+orderID, fn)
}
