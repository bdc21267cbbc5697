// internal/service/stock/application/service.go
package application

import (
	"context"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/stock/actor"
	"atlas/internal/service/stock/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var stockOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stock_operations_total",
	Help: "Stock operations by type and result kind.",
}, []string{"op", "result"})

// StockService 是库存预占的门面：并发敏感的判断全部委托给 actor，
// 永久扣减落到 ledger。对外（订单 Saga 与 HTTP 边界）只暴露这一层。
type StockService struct {
	actors *actor.Manager
	ledger domain.Ledger
	tracer trace.Tracer

	sweepInterval time.Duration
}

// NewStockService 创建库存服务。
func NewStockService(actors *actor.Manager, ledger domain.Ledger, tracer trace.Tracer, sweepInterval time.Duration) *StockService {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &StockService{actors: actors, ledger: ledger, tracer: tracer, sweepInterval: sweepInterval}
}

// Reserve 创建一笔 TTL 有界的预占。
func (s *StockService) Reserve(ctx context.Context, productID, orderID string, quantity int, ttl time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "stock.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.String("order.id", orderID),
		attribute.Int("quantity", quantity),
	)

	if quantity <= 0 {
		return apperr.Validation("reserve quantity must be positive, got %d", quantity)
	}
	if orderID == "" {
		return apperr.Validation("reserve requires an order id")
	}
	if ttl <= 0 {
		return apperr.Validation("reserve ttl must be positive")
	}

	err := s.actors.Reserve(ctx, productID, orderID, quantity, ttl)
	stockOps.WithLabelValues("reserve", apperr.Kind(err)).Inc()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.AddEvent("Stock reserved")
	return nil
}

// Release 释放预占，幂等。
func (s *StockService) Release(ctx context.Context, productID, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "stock.Release")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.String("order.id", orderID))

	err := s.actors.Release(ctx, productID, orderID)
	stockOps.WithLabelValues("release", apperr.Kind(err)).Inc()
	return err
}

// Reduce 把预占转化为永久扣减。
func (s *StockService) Reduce(ctx context.Context, productID, orderID string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "stock.Reduce")
	defer span.End()
	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.String("order.id", orderID),
		attribute.Int("quantity", quantity),
	)

	if quantity <= 0 {
		return apperr.Validation("reduce quantity must be positive, got %d", quantity)
	}

	err := s.actors.Reduce(ctx, productID, orderID, quantity)
	stockOps.WithLabelValues("reduce", apperr.Kind(err)).Inc()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Restore 回补在库数量（Reduce 的补偿）。
func (s *StockService) Restore(ctx context.Context, productID string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "stock.Restore")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("quantity", quantity))

	if quantity <= 0 {
		return apperr.Validation("restore quantity must be positive, got %d", quantity)
	}
	err := s.actors.Restore(ctx, productID, quantity)
	stockOps.WithLabelValues("restore", apperr.Kind(err)).Inc()
	return err
}

// Status 返回商品库存快照。
func (s *StockService) Status(ctx context.Context, productID string) (domain.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "stock.Status")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	return s.actors.Status(ctx, productID)
}

// SetOnHand 直接设置在库数量，用于初始化和运维。
func (s *StockService) SetOnHand(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return apperr.Validation("on-hand quantity cannot be negative")
	}
	return s.ledger.Set(ctx, productID, quantity)
}

// RunSweeper 周期性清理过期预占，随 ctx 结束。
// actor 在 Reserve 前也会机会性清理，这里兜底处理长时间无人访问的商品。
func (s *StockService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	logger.Ctx(ctx).Printf("Stock expiry sweeper started (interval %s)", s.sweepInterval)
	for {
		select {
		case <-ticker.C:
			s.actors.SweepExpired(ctx)
		case <-ctx.Done():
			logger.Ctx(ctx).Printf("Stock expiry sweeper stopped")
			return
		}
	}
}
