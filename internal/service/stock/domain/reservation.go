// internal/service/stock/domain/reservation.go
package domain

import "time"

// Reservation 是一笔有时限的库存预占。
// 以 (productID, orderID) 为唯一键：同一订单对同一商品最多只有一个活跃预占。
type Reservation struct {
	OrderID   string    `json:"orderId"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired 判断预占在给定时刻是否已失效。
func (r Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Snapshot 是单个商品的库存视图。
// Available = OnHand - Reserved，向下保护不为负（防御时钟/一致性漂移）。
type Snapshot struct {
	OnHand    int `json:"onHand"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}
