// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending    Status = "PENDING"    // 已创建，等待支付
	StatusProcessing Status = "PROCESSING" // 处理中（COD 确认阶段）
	StatusCompleted  Status = "COMPLETED"  // 终态：支付完成且库存已扣
	StatusFailed     Status = "FAILED"     // 终态：Saga 不可恢复失败
	StatusCancelled  Status = "CANCELLED"  // 终态：用户/系统取消
)

// 状态只能单调前进；终态之后不允许任何跃迁。
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// CanTransition 判断一次状态跃迁是否合法。
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal 判断状态是否为终态。
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// Active 判断订单是否仍可被 capture / cancel 操作。
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}
