// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/application/saga"
	"atlas/internal/service/order/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

var sagaOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "order_saga_total",
	Help: "Order saga executions by flow and outcome.",
}, []string{"flow", "result"})

// Service 是订单服务的应用层门面：
// 给每个 Saga 流程套上统一的超时、指标与日志，业务编排全部委托给 Orchestrator。
type Service struct {
	orchestrator *saga.Orchestrator
	orders       domain.OrderRepository
	tracer       trace.Tracer
	flowTimeout  time.Duration
}

func NewService(orchestrator *saga.Orchestrator, orders domain.OrderRepository,
	tracer trace.Tracer, flowTimeout time.Duration) *Service {
	if flowTimeout <= 0 {
		flowTimeout = 30 * time.Second
	}
	return &Service{
		orchestrator: orchestrator,
		orders:       orders,
		tracer:       tracer,
		flowTimeout:  flowTimeout,
	}
}

func (s *Service) observe(flow string, err error) {
	result := "success"
	if err != nil {
		result = apperr.Kind(err)
	}
	sagaOutcomes.WithLabelValues(flow, result).Inc()
}

// CreateOrder 创建一个在线支付订单。
func (s *Service) CreateOrder(ctx context.Context, input saga.CreateOrderInput) (*saga.CreateOrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.flowTimeout)
	defer cancel()

	result, err := s.orchestrator.CreateOrder(ctx, input)
	s.observe("create_order", err)
	return result, err
}

// CreateCODOrder 创建一个货到付款订单，下单即完成。
func (s *Service) CreateCODOrder(ctx context.Context, input saga.CreateOrderInput) (*saga.CODOrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.flowTimeout)
	defer cancel()

	result, err := s.orchestrator.CreateCODOrder(ctx, input)
	s.observe("cod_order", err)
	return result, err
}

// CapturePayment 对待支付订单执行扣款。
func (s *Service) CapturePayment(ctx context.Context, input saga.CaptureInput) (*saga.CaptureOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.flowTimeout)
	defer cancel()

	outcome, err := s.orchestrator.CapturePayment(ctx, input)
	s.observe("capture_payment", err)
	return outcome, err
}

// CancelOrder 取消一个尚未完成的订单。
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*saga.CancelOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.flowTimeout)
	defer cancel()

	outcome, err := s.orchestrator.CancelOrder(ctx, orderID)
	s.observe("cancel_order", err)
	return outcome, err
}

// GetOrder 查询订单，未找到返回 (nil, nil)。
func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

// HandlePaymentTimeout 处理延迟消息触发的支付超时检查：
// 订单仍处于待支付则取消，其余状态说明用户已经付款或订单已被处理，直接跳过。
func (s *Service) HandlePaymentTimeout(ctx context.Context, event domain.PaymentTimeoutCheckEvent) error {
	ctx, span := s.tracer.Start(ctx, "order.HandlePaymentTimeout")
	defer span.End()

	order, err := s.orders.FindByID(ctx, event.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		logger.Ctx(ctx).Warn().Str("order_id", event.OrderID).Msg("timeout check for unknown order, skipping")
		return nil
	}
	if order.Status != domain.StatusPending {
		logger.Ctx(ctx).Info().
			Str("order_id", order.ID).
			Str("status", string(order.Status)).
			Msg("order no longer pending, timeout check is a no-op")
		return nil
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Time("created_at", event.CreationTime).
		Msg("payment window elapsed, cancelling order")

	outcome, err := s.orchestrator.CancelOrder(ctx, order.ID)
	s.observe("payment_timeout", err)
	if err != nil {
		return err
	}
	if !outcome.Cancelled {
		logger.Ctx(ctx).Info().Str("order_id", order.ID).Str("message", outcome.Message).Msg("timeout cancel lost the race")
	}
	return nil
}
