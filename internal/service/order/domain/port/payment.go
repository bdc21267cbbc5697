// internal/service/order/domain/port/payment.go
package port

import "context"

// PaymentOrder 是支付方创建的待支付单。
type PaymentOrder struct {
	OrderID      string `json:"orderId"` // 支付方自己的订单号
	ApprovalLink string `json:"approvalLink"`
}

// CaptureResult 是扣款结果。
type CaptureResult struct {
	Status       string `json:"status"`
	PayerAddress string `json:"payerAddress,omitempty"`
}

// PaymentService 是外部支付方的出站端口。
// 注意：支付单一旦创建就不保证能干净地撤销，创建支付的补偿只能是
// 记录下来等待人工退款/作废（见 Saga 的 CancelPaymentNote 补偿步骤）。
type PaymentService interface {
	// Create 为给定金额创建一个待支付单，返回支付方订单号与跳转链接。
	Create(ctx context.Context, amount int64, currency string, accessToken string) (*PaymentOrder, error)

	// Capture 对一个已批准的支付单扣款。
	Capture(ctx context.Context, externalOrderID, accessToken string) (*CaptureResult, error)
}
