// internal/service/order/infrastructure/locker_zk.go
package infrastructure

import (
	"context"

	"atlas/internal/pkg/zookeeper"
	"atlas/internal/service/order/domain/port"
)

// ZkLocker 用 Zookeeper 临时顺序节点实现跨副本的订单互斥。
// 多副本部署时 capture 与 cancel 对同一订单的竞争由它裁决第一道，
// 数据库的受保护状态跃迁仍然是最后一道防线。
type ZkLocker struct {
	conn *zookeeper.Conn
}

var _ port.Locker = (*ZkLocker)(nil)

func NewZkLocker(conn *zookeeper.Conn) *ZkLocker {
	return &ZkLocker{conn: conn}
}

func (l *ZkLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock, err := zookeeper.NewDistributedLock(l.conn, key)
	if err != nil {
		return err
	}
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer lock.Unlock()
	return fn(ctx)
}
