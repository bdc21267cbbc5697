// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"atlas/internal/service/order/domain"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// GormOrderRepository 是 OrderRepository 的 MySQL 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

var _ domain.OrderRepository = (*GormOrderRepository)(nil)

// NewGormOrderRepository 连接 MySQL 并确保表结构存在。
func NewGormOrderRepository(dsn string) (*GormOrderRepository, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&OrderPO{}, &OrderItemPO{}); err != nil {
		return nil, err
	}
	return &GormOrderRepository{db: db}, nil
}

// Save 在一个事务内插入订单与全部行项目。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(toPO(order)).Error
}

// FindByID 加载订单聚合，未找到返回 (nil, nil)。
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var po OrderPO
	err := r.db.WithContext(ctx).Preload("Items").First(&po, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomain(&po), nil
}

// UpdateStatus 执行受保护的状态跃迁。
// 条件更新在数据库层原子完成，RowsAffected 告诉调用方是否赢得了竞争。
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id string, from []domain.Status, to domain.Status) (bool, error) {
	froms := make([]string, len(from))
	for i, s := range from {
		froms[i] = string(s)
	}
	result := r.db.WithContext(ctx).
		Model(&OrderPO{}).
		Where("id = ? AND status IN ?", id, froms).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
