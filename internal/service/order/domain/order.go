// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"time"

	"atlas/internal/pkg/apperr"

	"github.com/google/uuid"
)

// PaymentMethod 是订单的支付方式
type PaymentMethod string

const (
	PaymentMethodPaypal PaymentMethod = "paypal"
	PaymentMethodCOD    PaymentMethod = "cod" // 货到付款，下单即确认
)

// ShippingMode 是单个商品可选的配送方式
type ShippingMode string

const (
	ShippingModeStandard ShippingMode = "standard"
	ShippingModeExpress  ShippingMode = "express"
)

// OrderItem 是下单时刻的商品快照。金额一律使用货币最小单位（分）。
type OrderItem struct {
	ProductID     string        `json:"productId"`
	Quantity      int           `json:"quantity"`
	UnitPrice     int64         `json:"unitPrice"`
	ShippingMode  ShippingMode  `json:"shippingMode"`
	ShippingCost  int64         `json:"shippingCost"`
	EstimatedDays int           `json:"estimatedDays"`
}

// Subtotal 返回该行的商品金额（不含运费）。
func (i OrderItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order 是订单聚合的根实体。订单从不删除，它是审计轨迹。
type Order struct {
	ID            string
	UserID        string
	Items         []OrderItem
	TotalAmount   int64 // 必须等于 Σ(行金额) + Σ(运费)
	PaymentMethod PaymentMethod
	Status        Status
	// PaymentReference 是外部支付方的订单号，创建支付前为空
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewOrder 创建一个待支付订单并校验金额不变式。
func NewOrder(userID string, method PaymentMethod, items []OrderItem) (*Order, error) {
	if userID == "" {
		return nil, apperr.Validation("order requires a user id")
	}
	if len(items) == 0 {
		return nil, apperr.Validation("order requires at least one item")
	}

	var total int64
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice < 0 || item.ShippingCost < 0 {
			return nil, apperr.Validation("invalid order item for product %q", item.ProductID)
		}
		total += item.Subtotal() + item.ShippingCost
	}
	if total <= 0 {
		return nil, apperr.Validation("invalid amount: computed total %d", total)
	}

	now := time.Now()
	return &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Items:         items,
		TotalAmount:   total,
		PaymentMethod: method,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AttachPayment 记录外部支付方的订单号。
func (o *Order) AttachPayment(ref string) {
	o.PaymentReference = ref
	o.UpdatedAt = time.Now()
}

// TransitionTo 执行一次状态跃迁，不合法时返回 ConflictError。
func (o *Order) TransitionTo(to Status) error {
	if !CanTransition(o.Status, to) {
		return apperr.Conflict("order %s cannot transition from %s to %s", o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%s user=%s status=%s total=%d}", o.ID, o.UserID, o.Status, o.TotalAmount)
}
