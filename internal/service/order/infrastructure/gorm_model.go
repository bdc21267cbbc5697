// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"atlas/internal/service/order/domain"
)

// OrderPO 是订单主表的持久化对象。
type OrderPO struct {
	ID               string `gorm:"primaryKey;size:64"`
	UserID           string `gorm:"index;size:64"`
	TotalAmount      int64
	PaymentMethod    string `gorm:"size:16"`
	Status           string `gorm:"size:16;index"`
	PaymentReference string `gorm:"size:128"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items []OrderItemPO `gorm:"foreignKey:OrderID;references:ID"`
}

func (OrderPO) TableName() string { return "orders" }

// OrderItemPO 是订单行项目表的持久化对象。
type OrderItemPO struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	OrderID       string `gorm:"index;size:64"`
	ProductID     string `gorm:"size:64"`
	Quantity      int
	UnitPrice     int64
	ShippingMode  string `gorm:"size:16"`
	ShippingCost  int64
	EstimatedDays int
}

func (OrderItemPO) TableName() string { return "order_items" }

func toPO(order *domain.Order) *OrderPO {
	po := &OrderPO{
		ID:               order.ID,
		UserID:           order.UserID,
		TotalAmount:      order.TotalAmount,
		PaymentMethod:    string(order.PaymentMethod),
		Status:           string(order.Status),
		PaymentReference: order.PaymentReference,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		po.Items = append(po.Items, OrderItemPO{
			OrderID:       order.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			ShippingMode:  string(item.ShippingMode),
			ShippingCost:  item.ShippingCost,
			EstimatedDays: item.EstimatedDays,
		})
	}
	return po
}

func toDomain(po *OrderPO) *domain.Order {
	order := &domain.Order{
		ID:               po.ID,
		UserID:           po.UserID,
		TotalAmount:      po.TotalAmount,
		PaymentMethod:    domain.PaymentMethod(po.PaymentMethod),
		Status:           domain.Status(po.Status),
		PaymentReference: po.PaymentReference,
		CreatedAt:        po.CreatedAt,
		UpdatedAt:        po.UpdatedAt,
	}
	for _, item := range po.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			ShippingMode:  domain.ShippingMode(item.ShippingMode),
			ShippingCost:  item.ShippingCost,
			EstimatedDays: item.EstimatedDays,
		})
	}
	return order
}
