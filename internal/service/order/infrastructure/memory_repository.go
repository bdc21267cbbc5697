// internal/service/order/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"slices"
	"sync"
	"time"

	"atlas/internal/service/order/domain"
)

// MemoryOrderRepository 是 OrderRepository 的内存实现，用于测试与本地运行。
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

var _ domain.OrderRepository = (*MemoryOrderRepository)(nil)

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func clone(order *domain.Order) *domain.Order {
	cp := *order
	cp.Items = slices.Clone(order.Items)
	return &cp
}

func (r *MemoryOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = clone(order)
	return nil
}

func (r *MemoryOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return clone(order), nil
}

func (r *MemoryOrderRepository) UpdateStatus(ctx context.Context, id string, from []domain.Status, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	if !slices.Contains(from, order.Status) {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	return true, nil
}
