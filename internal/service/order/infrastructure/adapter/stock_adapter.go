// internal/service/order/infrastructure/adapter/stock_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"atlas/internal/pkg/httpclient"
	"atlas/internal/service/order/domain/port"
)

// StockAdapter 通过 HTTP 调用库存服务。
// 所有写操作都携带 (productID, orderID)，与库存侧的预占键一致。
type StockAdapter struct {
	client  *httpclient.Client
	baseURL string
}

var _ port.StockService = (*StockAdapter)(nil)

func NewStockAdapter(client *httpclient.Client, baseURL string) *StockAdapter {
	return &StockAdapter{client: client, baseURL: baseURL}
}

type reserveRequest struct {
	Quantity   int    `json:"quantity"`
	OrderID    string `json:"orderId"`
	TTLMinutes int    `json:"ttlMinutes"`
}

type releaseRequest struct {
	OrderID string `json:"orderId"`
}

type reduceRequest struct {
	Quantity int    `json:"quantity"`
	OrderID  string `json:"orderId"`
}

type restoreRequest struct {
	Quantity int `json:"quantity"`
}

func (a *StockAdapter) Reserve(ctx context.Context, productID, orderID string, quantity int, ttl time.Duration) error {
	ttlMinutes := int(ttl.Minutes())
	if ttlMinutes < 1 {
		ttlMinutes = 1
	}
	url := fmt.Sprintf("%s/stock/%s/reserve", a.baseURL, productID)
	return a.client.PostJSON(ctx, url, "", reserveRequest{
		Quantity:   quantity,
		OrderID:    orderID,
		TTLMinutes: ttlMinutes,
	}, nil)
}

func (a *StockAdapter) Release(ctx context.Context, productID, orderID string) error {
	url := fmt.Sprintf("%s/stock/%s/release", a.baseURL, productID)
	return a.client.PostJSON(ctx, url, "", releaseRequest{OrderID: orderID}, nil)
}

func (a *StockAdapter) Reduce(ctx context.Context, productID, orderID string, quantity int) error {
	url := fmt.Sprintf("%s/stock/%s/reduce", a.baseURL, productID)
	return a.client.PostJSON(ctx, url, "", reduceRequest{Quantity: quantity, OrderID: orderID}, nil)
}

func (a *StockAdapter) Restore(ctx context.Context, productID string, quantity int) error {
	url := fmt.Sprintf("%s/stock/%s/restore", a.baseURL, productID)
	return a.client.PostJSON(ctx, url, "", restoreRequest{Quantity: quantity}, nil)
}
