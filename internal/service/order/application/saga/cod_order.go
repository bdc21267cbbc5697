// internal/service/order/application/saga/cod_order.go
package saga

import (
	"context"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/domain"
)

// CODOrderResult 在货到付款下单成功后返回。没有支付链接，订单直接完成。
type CODOrderResult struct {
	OrderID     string `json:"orderId"`
	TotalAmount int64  `json:"totalAmount"`
}

// CreateCODOrder 执行货到付款下单 Saga。
// 前四步与在线支付共用（购物车、复核、计价、建单），之后跳过支付单创建，
// 在同一个流程内预占并立即扣减库存、清空购物车、把订单推进到完成。
func (o *Orchestrator) CreateCODOrder(ctx context.Context, input CreateOrderInput) (*CODOrderResult, error) {
	ctx, span := o.deps.Tracer.Start(ctx, "saga.CreateCODOrder")
	defer span.End()

	comp := &compensator{}
	order, err := o.runCODOrder(ctx, input, comp)
	if err != nil {
		span.RecordError(err)
		o.unwind(ctx, comp)
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
		Str("user_id", input.UserID).
		Int64("total_amount", order.TotalAmount).
		Msg("cod order completed")

	return &CODOrderResult{OrderID: order.ID, TotalAmount: order.TotalAmount}, nil
}

func (o *Orchestrator) runCODOrder(ctx context.Context, input CreateOrderInput, comp *compensator) (*domain.Order, error) {
	cart, err := o.loadCart(ctx, input.UserID, input.AccessToken)
	if err != nil {
		return nil, err
	}

	cartItems, err := o.validateCart(ctx, cart, input.AccessToken)
	if err != nil {
		return nil, err
	}

	items, err := o.priceItems(ctx, cartItems, input.ShippingSelection, input.Address, input.AccessToken)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(input.UserID, domain.PaymentMethodCOD, items)
	if err != nil {
		return nil, err
	}

	if err := o.deps.Orders.Save(ctx, order); err != nil {
		return nil, err
	}
	comp.push(CompensationStep{Kind: CompMarkOrderCancelled, OrderID: order.ID})

	// 预占后立即扣减。预占仍然是必要的一步：扣减走的是同一条
	// (productID, orderID) 通道，可用性检查与并发裁决都由库存 actor 串行完成
	if err := o.reserveItems(ctx, order, comp); err != nil {
		return nil, err
	}
	if err := o.reduceItems(ctx, order, comp); err != nil {
		return nil, err
	}

	o.clearCart(ctx, input.UserID, input.AccessToken)

	ok, err := o.deps.Orders.UpdateStatus(ctx, order.ID,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusCompleted)
	if err == nil && !ok {
		err = apperr.Conflict("order %s was concurrently finalized", order.ID)
	}
	if err != nil {
		return nil, err
	}
	order.Status = domain.StatusCompleted
	return order, nil
}
