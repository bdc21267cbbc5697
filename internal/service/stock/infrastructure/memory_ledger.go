// internal/service/stock/infrastructure/memory_ledger.go
package infrastructure

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger 是 Ledger 的进程内实现，用于测试和本地开发。
type MemoryLedger struct {
	mu     sync.RWMutex
	onHand map[string]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{onHand: make(map[string]int)}
}

func (l *MemoryLedger) OnHand(ctx context.Context, productID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.onHand[productID], nil
}

func (l *MemoryLedger) Decrement(ctx context.Context, productID string, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.onHand[productID] < quantity {
		return fmt.Errorf("ledger underflow for product %s: on-hand %d, decrement %d", productID, l.onHand[productID], quantity)
	}
	l.onHand[productID] -= quantity
	return nil
}

func (l *MemoryLedger) Increment(ctx context.Context, productID string, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onHand[productID] += quantity
	return nil
}

func (l *MemoryLedger) Set(ctx context.Context, productID string, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onHand[productID] = quantity
	return nil
}
