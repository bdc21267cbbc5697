// internal/service/order/domain/events.go
package domain

import "time"

// OrderEventType 是对外广播的订单事件类型
type OrderEventType string

const (
	EventOrderCompleted OrderEventType = "order.completed"
	EventOrderCancelled OrderEventType = "order.cancelled"
	EventOrderFailed    OrderEventType = "order.failed"
)

// OrderEvent 发布到订单事件主题，推送网关据此向用户推送状态变化。
type OrderEvent struct {
	Type        OrderEventType `json:"type"`
	OrderID     string         `json:"orderId"`
	UserID      string         `json:"userId"`
	Status      Status         `json:"status"`
	TotalAmount int64          `json:"totalAmount"`
	Reason      string         `json:"reason,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// PaymentTimeoutCheckEvent 是延迟消息的载荷：
// 订单创建后按预占 TTL 调度一次支付超时检查，到点仍未支付则取消订单。
type PaymentTimeoutCheckEvent struct {
	TraceID      string    `json:"traceId"`
	OrderID      string    `json:"orderId"`
	UserID       string    `json:"userId"`
	CreationTime time.Time `json:"creationTime"`
}
