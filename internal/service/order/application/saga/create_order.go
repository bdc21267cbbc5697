// internal/service/order/application/saga/create_order.go
package saga

import (
	"context"

	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/domain/port"
)

// CreateOrderInput 是创建在线支付订单的入参。
type CreateOrderInput struct {
	UserID            string
	AccessToken       string
	ShippingSelection map[string]domain.ShippingMode // productID -> 配送方式，缺省 standard
	Address           string
}

// CreateOrderResult 在创建成功后返回给调用方。
// 此时订单处于待支付状态，用户需要沿 ApprovalLink 完成支付批准。
type CreateOrderResult struct {
	OrderID          string `json:"orderId"`
	TotalAmount      int64  `json:"totalAmount"`
	PaymentReference string `json:"paymentReference"`
	ApprovalLink     string `json:"approvalLink"`
}

// createOrderState 是创建流程的显式状态，在步骤间传递。
type createOrderState struct {
	input   CreateOrderInput
	cart    *port.Cart
	items   []domain.OrderItem
	order   *domain.Order
	payment *port.PaymentOrder
}

// CreateOrder 执行在线支付下单 Saga：
// 购物车校验 -> 并发计价 -> 创建支付单 -> 落库订单 -> 并发预占库存 -> 调度支付超时。
// 任一步失败即按 LIFO 执行已登记补偿并返回原始错误。
func (o *Orchestrator) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	ctx, span := o.deps.Tracer.Start(ctx, "saga.CreateOrder")
	defer span.End()

	state := &createOrderState{input: input}
	comp := &compensator{}

	if err := o.runCreateOrder(ctx, state, comp); err != nil {
		span.RecordError(err)
		o.unwind(ctx, comp)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", state.order.ID).
		Str("user_id", input.UserID).
		Int64("total_amount", state.order.TotalAmount).
		Msg("order created, awaiting payment")

	return &CreateOrderResult{
		OrderID:          state.order.ID,
		TotalAmount:      state.order.TotalAmount,
		PaymentReference: state.payment.OrderID,
		ApprovalLink:     state.payment.ApprovalLink,
	}, nil
}

func (o *Orchestrator) runCreateOrder(ctx context.Context, state *createOrderState, comp *compensator) error {
	// 步骤 1-3：购物车快照、复核、并发计价
	cart, err := o.loadCart(ctx, state.input.UserID, state.input.AccessToken)
	if err != nil {
		return err
	}
	state.cart = cart

	cartItems, err := o.validateCart(ctx, cart, state.input.AccessToken)
	if err != nil {
		return err
	}

	state.items, err = o.priceItems(ctx, cartItems, state.input.ShippingSelection, state.input.Address, state.input.AccessToken)
	if err != nil {
		return err
	}

	// 步骤 4：构造订单聚合，金额不变式在这里校验
	order, err := domain.NewOrder(state.input.UserID, domain.PaymentMethodPaypal, state.items)
	if err != nil {
		return err
	}
	state.order = order

	// 步骤 5：创建外部支付单。支付单撤销不保证干净，补偿只能留痕
	payment, err := o.deps.Payment.Create(ctx, order.TotalAmount, o.deps.Currency, state.input.AccessToken)
	if err != nil {
		return err
	}
	state.payment = payment
	order.AttachPayment(payment.OrderID)
	comp.push(CompensationStep{
		Kind:       CompCancelPaymentNote,
		OrderID:    order.ID,
		PaymentRef: payment.OrderID,
	})

	// 步骤 6：订单落库（PENDING）
	if err := o.deps.Orders.Save(ctx, order); err != nil {
		return err
	}
	comp.push(CompensationStep{Kind: CompMarkOrderCancelled, OrderID: order.ID})

	// 步骤 7：并发预占库存，TTL 兜底
	if err := o.reserveItems(ctx, order, comp); err != nil {
		return err
	}

	// 步骤 8：调度支付超时检查，尽力而为。调度失败不回滚订单，预占 TTL 仍然兜底
	if o.deps.Scheduler != nil {
		deadline := order.CreatedAt.Add(o.deps.ReservationTTL)
		if err := o.deps.Scheduler.SchedulePaymentTimeout(ctx, order.ID, order.UserID, deadline); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("order_id", order.ID).
				Msg("failed to schedule payment timeout check")
		}
	}
	return nil
}
