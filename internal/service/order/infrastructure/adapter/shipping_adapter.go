// internal/service/order/infrastructure/adapter/shipping_adapter.go
package adapter

import (
	"context"

	"atlas/internal/pkg/httpclient"
	"atlas/internal/service/order/domain/port"
)

// ShippingAdapter 通过 HTTP 调用运费/时效计算服务。
type ShippingAdapter struct {
	client  *httpclient.Client
	baseURL string
}

var _ port.ShippingService = (*ShippingAdapter)(nil)

func NewShippingAdapter(client *httpclient.Client, baseURL string) *ShippingAdapter {
	return &ShippingAdapter{client: client, baseURL: baseURL}
}

func (a *ShippingAdapter) CalculateShipping(ctx context.Context, query port.ShippingQuery, accessToken string) (*port.ShippingQuote, error) {
	var quote port.ShippingQuote
	if err := a.client.PostJSON(ctx, a.baseURL+"/shipping/calculate", accessToken, query, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
