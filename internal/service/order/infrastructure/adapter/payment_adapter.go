// internal/service/order/infrastructure/adapter/payment_adapter.go
package adapter

import (
	"context"
	"fmt"

	"atlas/internal/pkg/httpclient"
	"atlas/internal/service/order/domain/port"
)

// PaymentAdapter 通过 HTTP 调用外部支付方。
type PaymentAdapter struct {
	client  *httpclient.Client
	baseURL string
}

var _ port.PaymentService = (*PaymentAdapter)(nil)

func NewPaymentAdapter(client *httpclient.Client, baseURL string) *PaymentAdapter {
	return &PaymentAdapter{client: client, baseURL: baseURL}
}

type createPaymentRequest struct {
	Amount   int64  `json:"amount"` // 最小货币单位
	Currency string `json:"currency"`
}

func (a *PaymentAdapter) Create(ctx context.Context, amount int64, currency, accessToken string) (*port.PaymentOrder, error) {
	var payment port.PaymentOrder
	req := createPaymentRequest{Amount: amount, Currency: currency}
	if err := a.client.PostJSON(ctx, a.baseURL+"/payments", accessToken, req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (a *PaymentAdapter) Capture(ctx context.Context, externalOrderID, accessToken string) (*port.CaptureResult, error) {
	var result port.CaptureResult
	url := fmt.Sprintf("%s/payments/%s/capture", a.baseURL, externalOrderID)
	if err := a.client.PostJSON(ctx, url, accessToken, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
