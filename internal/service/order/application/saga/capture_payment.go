// internal/service/order/application/saga/capture_payment.go
package saga

import (
	"context"
	"strings"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/domain"
)

// CaptureInput 是扣款完成下单的入参。
type CaptureInput struct {
	OrderID     string
	AccessToken string
}

// CaptureOutcome 是扣款流程的结果。
// 订单已处于终态时不报错，Completed=false 且 Message 说明当前状态，
// 重复请求与竞争失败方由此得到确定的答复而不是 5xx。
type CaptureOutcome struct {
	OrderID   string `json:"orderId"`
	Completed bool   `json:"completed"`
	Message   string `json:"message"`
}

// CapturePayment 执行扣款 Saga：
// 锁内检查状态 -> 扣款 -> 并发把预占转为永久扣减 -> 清空购物车 -> 订单完成。
// 扣款本身失败直接中止、不做补偿（订单保持待支付，可重试）；
// 扣款成功之后的任何失败都必须回补库存并把订单置为失败，同时留下人工对账日志。
func (o *Orchestrator) CapturePayment(ctx context.Context, input CaptureInput) (*CaptureOutcome, error) {
	ctx, span := o.deps.Tracer.Start(ctx, "saga.CapturePayment")
	defer span.End()

	var outcome *CaptureOutcome
	err := o.withOrderLock(ctx, input.OrderID, func(ctx context.Context) error {
		var err error
		outcome, err = o.captureLocked(ctx, input)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return outcome, nil
}

func (o *Orchestrator) captureLocked(ctx context.Context, input CaptureInput) (*CaptureOutcome, error) {
	order, err := o.deps.Orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.Validation("order %s not found", input.OrderID)
	}

	// 终态订单直接给出确定答复，幂等
	if !order.Status.Active() {
		return &CaptureOutcome{
			OrderID:   order.ID,
			Completed: order.Status == domain.StatusCompleted,
			Message:   "order already " + strings.ToLower(string(order.Status)),
		}, nil
	}
	if order.PaymentMethod != domain.PaymentMethodPaypal {
		return nil, apperr.Conflict("order %s uses %s and cannot be captured", order.ID, order.PaymentMethod)
	}
	if order.PaymentReference == "" {
		return nil, apperr.Conflict("order %s has no payment to capture", order.ID)
	}

	// 扣款失败立即中止：还没有产生任何需要补偿的副作用
	if _, err := o.deps.Payment.Capture(ctx, order.PaymentReference, input.AccessToken); err != nil {
		return nil, err
	}

	// 钱已经扣了。从这里开始失败都要走 failAfterCapture
	comp := &compensator{}
	if err := o.reduceItems(ctx, order, comp); err != nil {
		o.failAfterCapture(ctx, order, comp, err)
		return nil, err
	}

	o.clearCart(ctx, order.UserID, input.AccessToken)

	ok, err := o.deps.Orders.UpdateStatus(ctx, order.ID,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusCompleted)
	if err == nil && !ok {
		err = apperr.Conflict("order %s was concurrently finalized", order.ID)
	}
	if err != nil {
		o.failAfterCapture(ctx, order, comp, err)
		return nil, err
	}

	o.publish(ctx, &domain.OrderEvent{
		Type:        domain.EventOrderCompleted,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      domain.StatusCompleted,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now(),
	})

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("payment_ref", order.PaymentReference).
		Msg("payment captured, order completed")

	return &CaptureOutcome{OrderID: order.ID, Completed: true, Message: "order completed"}, nil
}

// failAfterCapture 处理扣款成功之后的失败：
// 回补已扣减的库存、释放残余预占、把订单置为失败并广播。
// 钱已经收了而货没有发出去，必须显式留下人工对账记录。
func (o *Orchestrator) failAfterCapture(ctx context.Context, order *domain.Order, comp *compensator, cause error) {
	logger.Ctx(ctx).Error().Err(cause).
		Str("order_id", order.ID).
		Str("payment_ref", order.PaymentReference).
		Int64("total_amount", order.TotalAmount).
		Msg("CRITICAL: payment captured but fulfillment failed, manual reconciliation required")

	o.unwind(ctx, comp)
	o.releaseAll(context.WithoutCancel(ctx), order)

	if _, err := o.deps.Orders.UpdateStatus(context.WithoutCancel(ctx), order.ID,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusFailed); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to mark order as failed")
	}

	o.publish(ctx, &domain.OrderEvent{
		Type:        domain.EventOrderFailed,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      domain.StatusFailed,
		TotalAmount: order.TotalAmount,
		Reason:      cause.Error(),
		OccurredAt:  time.Now(),
	})
}
