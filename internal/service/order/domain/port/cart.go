// internal/service/order/domain/port/cart.go
package port

import "context"

// CartItem 是购物车中的一行。
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"` // 最小货币单位
}

// Cart 是购物车服务返回的快照。
type Cart struct {
	CartID     string     `json:"cartId"`
	Items      []CartItem `json:"items"`
	TotalPrice int64      `json:"totalPrice"`
}

// ValidationResult 是购物车校验的结果。
// 价格漂移不是硬失败：购物车服务会把更新后的价格写回购物车并置 CartUpdated，
// 编排器采用 UpdatedItems 继续（last-known-good-price 策略）；库存硬缺口才失败。
type ValidationResult struct {
	Valid        bool       `json:"valid"`
	Errors       []string   `json:"errors,omitempty"`
	CartUpdated  bool       `json:"cartUpdated"`
	UpdatedItems []CartItem `json:"updatedItems,omitempty"`
}

// CartService 是购物车服务的出站端口。
type CartService interface {
	// GetCart 拉取用户当前购物车。
	GetCart(ctx context.Context, userID, accessToken string) (*Cart, error)

	// Validate 让购物车服务重新校验价格与库存。
	Validate(ctx context.Context, cartID, accessToken string) (*ValidationResult, error)

	// Clear 清空购物车。capture 流程中清空失败只记录，不回滚 Saga。
	Clear(ctx context.Context, cartID, accessToken string) error
}
