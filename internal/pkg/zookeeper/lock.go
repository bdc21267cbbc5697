// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/atlas/locks" // 所有分布式锁的根节点

// DistributedLock 基于临时顺序节点实现的分布式锁。
// 订单编排器在执行 capture/cancel 这类状态跃迁前，对 orderID 加锁，
// 保证多副本部署时同一订单同一时刻只有一个 Saga 在推进。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的路径，例如 /atlas/locks/order-123
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	// 确保根路径存在；生产环境通常由初始化脚本完成
	for _, p := range parentPaths(lockRoot) {
		if exists, _, err := conn.Exists(p); err == nil && !exists {
			if _, err := conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
				return nil, errors.Wrapf(err, "failed to create lock root node %s", p)
			}
		}
	}

	lockPath := lockRoot + "/" + resourceID
	if exists, _, err := conn.Exists(lockPath); err == nil && !exists {
		if _, err := conn.Create(lockPath, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return nil, errors.Wrapf(err, "failed to create lock path node %s", lockPath)
		}
	}

	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 尝试获取锁，获取不到则阻塞等待，直到 ctx 到期。
func (l *DistributedLock) Lock(ctx context.Context) error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "failed to create sequential node")
	}
	l.lockNode = nodePath

	for {
		// 2. 获取锁路径下的所有子节点
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "failed to get children nodes")
		}
		sort.Strings(children)

		// 3. 自己是最小节点则成功获取锁
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 4. 否则监听前一个节点
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find previous node, something is wrong")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			if err == zk.ErrNoNode {
				continue
			}
			return errors.Wrap(err, "failed to watch previous node")
		}
		if !exists {
			// 前一个节点在设置 watch 前刚好消失，重新竞争
			continue
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-ctx.Done():
			// 超时/取消，放弃排队并清理自己的节点
			_ = l.Unlock()
			return ctx.Err()
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "failed to delete lock node")
	}
	l.lockNode = ""
	return nil
}

func parentPaths(path string) []string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	paths := make([]string, 0, len(parts))
	cur := ""
	for _, p := range parts {
		cur += "/" + p
		paths = append(paths, cur)
	}
	return paths
}
