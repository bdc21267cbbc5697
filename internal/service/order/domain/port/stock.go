// internal/service/order/domain/port/stock.go
package port

import (
	"context"
	"time"
)

// StockService 是库存服务的出站端口。
// 所有操作都以 (productID, orderID) 为键，绝不允许按裸数量释放，
// 并发部分预占下那是不安全的。
type StockService interface {
	// Reserve 为订单预占库存，TTL 到期自动失效。
	Reserve(ctx context.Context, productID, orderID string, quantity int, ttl time.Duration) error

	// Release 释放预占，幂等：没有预占也不报错。
	Release(ctx context.Context, productID, orderID string) error

	// Reduce 把预占转化为永久扣减；预占已过期时返回 ReservationExpiredError。
	Reduce(ctx context.Context, productID, orderID string, quantity int) error

	// Restore 回补在库数量，是 Reduce 的补偿操作。
	Restore(ctx context.Context, productID string, quantity int) error
}
