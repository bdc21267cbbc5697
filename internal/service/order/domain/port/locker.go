// internal/service/order/domain/port/locker.go
package port

import "context"

// Locker 是跨副本互斥的出站端口。
// capture 与 cancel 在推进同一订单状态前必须持有该订单的锁，
// 状态检查因此在互斥下进行，竞争由状态跃迁的唯一胜者裁决。
type Locker interface {
	// WithLock 在持有 key 对应的锁期间执行 fn。
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
