// internal/service/order/application/saga/cancel_order.go
package saga

import (
	"context"
	"strings"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/domain"
)

// CancelOutcome 是取消流程的结果。
// 订单已处于终态时取消是无害的重复请求：不报错，Cancelled=false，
// Message 告知当前状态。
type CancelOutcome struct {
	OrderID   string `json:"orderId"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// CancelOrder 取消一个尚未完成的订单：
// 锁内检查状态 -> 幂等释放全部预占 -> 受保护地跃迁到已取消 -> 广播事件。
// 释放先于状态跃迁：即使跃迁竞争失败，多释放一次也是幂等无害的，
// 反过来先跃迁后释放一旦中途崩溃就会留下占着库存的已取消订单。
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (*CancelOutcome, error) {
	ctx, span := o.deps.Tracer.Start(ctx, "saga.CancelOrder")
	defer span.End()

	var outcome *CancelOutcome
	err := o.withOrderLock(ctx, orderID, func(ctx context.Context) error {
		var err error
		outcome, err = o.cancelLocked(ctx, orderID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return outcome, nil
}

func (o *Orchestrator) cancelLocked(ctx context.Context, orderID string) (*CancelOutcome, error) {
	order, err := o.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.Validation("order %s not found", orderID)
	}

	if !order.Status.Active() {
		return &CancelOutcome{
			OrderID:   order.ID,
			Cancelled: false,
			Message:   "order already " + strings.ToLower(string(order.Status)),
		}, nil
	}

	o.releaseAll(ctx, order)

	ok, err := o.deps.Orders.UpdateStatus(ctx, order.ID,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 竞争失败：对方（通常是 capture）已经把订单推进到了终态
		current, err := o.deps.Orders.FindByID(ctx, order.ID)
		if err != nil || current == nil {
			return nil, apperr.Conflict("order %s was concurrently finalized", order.ID)
		}
		return &CancelOutcome{
			OrderID:   order.ID,
			Cancelled: false,
			Message:   "order already " + strings.ToLower(string(current.Status)),
		}, nil
	}

	if order.PaymentReference != "" {
		// 外部支付单无法保证干净撤销，留痕等待人工作废
		logger.Ctx(ctx).Warn().
			Str("order_id", order.ID).
			Str("payment_ref", order.PaymentReference).
			Msg("cancelled order has an open payment order, manual void may be required")
	}

	o.publish(ctx, &domain.OrderEvent{
		Type:        domain.EventOrderCancelled,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      domain.StatusCancelled,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now(),
	})

	logger.Ctx(ctx).Info().Str("order_id", order.ID).Msg("order cancelled")
	return &CancelOutcome{OrderID: order.ID, Cancelled: true, Message: "order cancelled"}, nil
}
