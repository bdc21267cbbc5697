// internal/service/stock/domain/ledger.go
package domain

import "context"

// Ledger 是商品在库数量（onHand）的持久化端口。
// 不变式：onHand 只能通过显式的永久扣减/回补变化，预占永远不触碰它。
type Ledger interface {
	// OnHand 返回商品当前的在库数量，未知商品视为 0。
	OnHand(ctx context.Context, productID string) (int, error)

	// Decrement 永久扣减在库数量。实现必须保证不会扣成负数。
	Decrement(ctx context.Context, productID string, quantity int) error

	// Increment 回补在库数量（capture 流程部分失败后的补偿）。
	Increment(ctx context.Context, productID string, quantity int) error

	// Set 直接设置在库数量，用于初始化和运维。
	Set(ctx context.Context, productID string, quantity int) error
}
