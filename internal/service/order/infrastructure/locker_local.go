// internal/service/order/infrastructure/locker_local.go
package infrastructure

import (
	"context"
	"sync"

	"atlas/internal/service/order/domain/port"
)

// LocalLocker 是进程内的按键互斥锁，用于单副本部署与测试。
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ port.Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	m := l.lockFor(key)
	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
