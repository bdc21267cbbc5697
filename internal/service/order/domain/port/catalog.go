// internal/service/order/domain/port/catalog.go
package port

import "context"

// Product 是商品目录返回的商品信息（只取运费计算需要的字段）。
type Product struct {
	ProductID          string  `json:"productId"`
	Category           string  `json:"category"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
}

// CatalogService 是商品目录服务的出站端口。
type CatalogService interface {
	GetProduct(ctx context.Context, productID, accessToken string) (*Product, error)
}
