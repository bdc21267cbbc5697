// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Save 插入一个新订单（含行项目）。
	Save(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找一个订单聚合。未找到返回 (nil, nil)。
	FindByID(ctx context.Context, id string) (*Order, error)

	// UpdateStatus 执行受保护的状态跃迁：仅当当前状态在 from 中时更新为 to，
	// 返回是否真的发生了跃迁。并发的 capture/cancel 用它来裁决胜者。
	UpdateStatus(ctx context.Context, id string, from []Status, to Status) (bool, error)
}
