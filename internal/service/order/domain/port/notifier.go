// internal/service/order/domain/port/notifier.go
package port

import (
	"context"

	"atlas/internal/service/order/domain"
)

// OrderEventPublisher 是订单事件的出站端口。
// 发布失败只记录，不影响主流程。事件是通知通道，不是一致性来源。
type OrderEventPublisher interface {
	Publish(ctx context.Context, event *domain.OrderEvent) error
}
