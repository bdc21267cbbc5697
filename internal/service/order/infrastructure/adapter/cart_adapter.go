// internal/service/order/infrastructure/adapter/cart_adapter.go
//
// 协作方 HTTP 适配器。每个协作方一个薄的类型化客户端，
// 共用同一个可追踪的 httpclient，自己只负责路径与载荷。
package adapter

import (
	"context"
	"fmt"

	"atlas/internal/pkg/httpclient"
	"atlas/internal/service/order/domain/port"
)

// CartAdapter 通过 HTTP 调用购物车服务。
type CartAdapter struct {
	client  *httpclient.Client
	baseURL string
}

var _ port.CartService = (*CartAdapter)(nil)

func NewCartAdapter(client *httpclient.Client, baseURL string) *CartAdapter {
	return &CartAdapter{client: client, baseURL: baseURL}
}

func (a *CartAdapter) GetCart(ctx context.Context, userID, accessToken string) (*port.Cart, error) {
	var cart port.Cart
	url := fmt.Sprintf("%s/carts/%s", a.baseURL, userID)
	if err := a.client.GetJSON(ctx, url, accessToken, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (a *CartAdapter) Validate(ctx context.Context, cartID, accessToken string) (*port.ValidationResult, error) {
	var result port.ValidationResult
	url := fmt.Sprintf("%s/carts/%s/validate", a.baseURL, cartID)
	if err := a.client.PostJSON(ctx, url, accessToken, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *CartAdapter) Clear(ctx context.Context, cartID, accessToken string) error {
	url := fmt.Sprintf("%s/carts/%s/clear", a.baseURL, cartID)
	return a.client.PostJSON(ctx, url, accessToken, nil, nil)
}
