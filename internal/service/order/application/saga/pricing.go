// internal/service/order/application/saga/pricing.go
//
// 创建类流程（在线支付 / 货到付款）共享的前置步骤：
// 拉取购物车、让购物车服务重新校验、并发计算每件商品的运费与时效。
package saga

import (
	"context"
	"strings"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/domain/port"

	"golang.org/x/sync/errgroup"
)

// loadCart 拉取用户购物车，空购物车按冲突处理。
func (o *Orchestrator) loadCart(ctx context.Context, userID, accessToken string) (*port.Cart, error) {
	cart, err := o.deps.Cart.GetCart(ctx, userID, accessToken)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, apperr.Conflict("cart is empty for user %s", userID)
	}
	return cart, nil
}

// validateCart 让购物车服务复核价格与可售性。
// 校验硬失败（Valid=false）中止流程；价格漂移（CartUpdated）不是失败，
// 购物车服务已把新价写回，这里直接采用更新后的行项目继续。
func (o *Orchestrator) validateCart(ctx context.Context, cart *port.Cart, accessToken string) ([]port.CartItem, error) {
	result, err := o.deps.Cart.Validate(ctx, cart.CartID, accessToken)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, apperr.Conflict("cart validation failed: %s", strings.Join(result.Errors, "; "))
	}
	if result.CartUpdated && len(result.UpdatedItems) > 0 {
		logger.Ctx(ctx).Info().
			Str("cart_id", cart.CartID).
			Msg("cart prices were updated during validation, adopting refreshed items")
		return result.UpdatedItems, nil
	}
	return cart.Items, nil
}

// priceItems 并发为每个行项目拉取商品信息并计算运费，组装订单行快照。
// 任何一件商品失败即整体失败，errgroup 会取消其余调用。
func (o *Orchestrator) priceItems(ctx context.Context, cartItems []port.CartItem,
	selection map[string]domain.ShippingMode, address, accessToken string) ([]domain.OrderItem, error) {

	items := make([]domain.OrderItem, len(cartItems))
	g, gctx := errgroup.WithContext(ctx)
	for i, ci := range cartItems {
		g.Go(func() error {
			product, err := o.deps.Catalog.GetProduct(gctx, ci.ProductID, accessToken)
			if err != nil {
				return err
			}

			mode := selection[ci.ProductID]
			if mode == "" {
				mode = domain.ShippingModeStandard
			}

			quote, err := o.deps.Shipping.CalculateShipping(gctx, port.ShippingQuery{
				ProductID: ci.ProductID,
				Category:  product.Category,
				Mode:      string(mode),
				Quantity:  ci.Quantity,
				Address:   address,
			}, accessToken)
			if err != nil {
				return err
			}

			items[i] = domain.OrderItem{
				ProductID:     ci.ProductID,
				Quantity:      ci.Quantity,
				UnitPrice:     ci.Price,
				ShippingMode:  mode,
				ShippingCost:  quote.Cost,
				EstimatedDays: quote.EstimatedDays,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// reserveItems 并发为订单的每个行项目预占库存。
// 每个成功的预占立刻登记释放补偿，部分成功后整体失败时才能把已占的还回去。
func (o *Orchestrator) reserveItems(ctx context.Context, order *domain.Order, comp *compensator) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range order.Items {
		g.Go(func() error {
			if err := o.deps.Stock.Reserve(gctx, item.ProductID, order.ID, item.Quantity, o.deps.ReservationTTL); err != nil {
				return err
			}
			comp.push(CompensationStep{
				Kind:      CompReleaseReservation,
				ProductID: item.ProductID,
				OrderID:   order.ID,
			})
			return nil
		})
	}
	return g.Wait()
}

// reduceItems 并发把每个行项目的预占转化为永久扣减。
// 每次成功的扣减登记回补补偿；预占已过期会从这里冒出 ReservationExpiredError。
func (o *Orchestrator) reduceItems(ctx context.Context, order *domain.Order, comp *compensator) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range order.Items {
		g.Go(func() error {
			if err := o.deps.Stock.Reduce(gctx, item.ProductID, order.ID, item.Quantity); err != nil {
				return err
			}
			comp.push(CompensationStep{
				Kind:      CompRestoreStock,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
			return nil
		})
	}
	return g.Wait()
}

// releaseAll 幂等释放订单全部行项目的预占，失败只记录。
func (o *Orchestrator) releaseAll(ctx context.Context, order *domain.Order) {
	for _, item := range order.Items {
		if err := o.deps.Stock.Release(ctx, item.ProductID, order.ID); err != nil {
			logger.Ctx(ctx).Error().Err(err).
				Str("order_id", order.ID).
				Str("product_id", item.ProductID).
				Msg("failed to release stock reservation")
		}
	}
}

// clearCart 尽力清空用户购物车。失败不回滚流程，下一次下单会重新校验。
func (o *Orchestrator) clearCart(ctx context.Context, userID, accessToken string) {
	cart, err := o.deps.Cart.GetCart(ctx, userID, accessToken)
	if err != nil || cart == nil {
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("skip cart clear, cart unavailable")
		return
	}
	if err := o.deps.Cart.Clear(ctx, cart.CartID, accessToken); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("cart_id", cart.CartID).Msg("failed to clear cart")
	}
}
