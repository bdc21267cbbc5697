// internal/service/order/domain/port/shipping.go
package port

import "context"

// ShippingQuery 是一次运费计算请求。
type ShippingQuery struct {
	ProductID string `json:"productId"`
	Category  string `json:"category"`
	Mode      string `json:"mode"` // standard | express
	Quantity  int    `json:"quantity"`
	Address   string `json:"address,omitempty"`
}

// ShippingQuote 是运费计算结果。
type ShippingQuote struct {
	Cost          int64 `json:"cost"`
	EstimatedDays int   `json:"estimatedDays"`
}

// ShippingService 是运费/时效计算服务的出站端口。
type ShippingService interface {
	CalculateShipping(ctx context.Context, query ShippingQuery, accessToken string) (*ShippingQuote, error)
}
