// internal/service/order/domain/port/scheduler.go
package port

import (
	"context"
	"time"
)

// DelayScheduler 是延迟任务调度器的出站端口。
// 预占 TTL 是服务端兜底；这里的调度是第二道防线：到点主动取消未支付订单，
// 让用户尽早看到确定的终态而不是等预占静默过期。
type DelayScheduler interface {
	// SchedulePaymentTimeout 安排一个在 deadline 执行的订单支付超时检查任务。
	SchedulePaymentTimeout(ctx context.Context, orderID, userID string, deadline time.Time) error
}
