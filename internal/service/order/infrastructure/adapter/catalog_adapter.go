// internal/service/order/infrastructure/adapter/catalog_adapter.go
package adapter

import (
	"context"
	"fmt"

	"atlas/internal/pkg/httpclient"
	"atlas/internal/service/order/domain/port"
)

// CatalogAdapter 通过 HTTP 调用商品目录服务。
type CatalogAdapter struct {
	client  *httpclient.Client
	baseURL string
}

var _ port.CatalogService = (*CatalogAdapter)(nil)

func NewCatalogAdapter(client *httpclient.Client, baseURL string) *CatalogAdapter {
	return &CatalogAdapter{client: client, baseURL: baseURL}
}

func (a *CatalogAdapter) GetProduct(ctx context.Context, productID, accessToken string) (*port.Product, error) {
	var product port.Product
	url := fmt.Sprintf("%s/products/%s", a.baseURL, productID)
	if err := a.client.GetJSON(ctx, url, accessToken, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
