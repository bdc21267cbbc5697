// internal/service/stock/infrastructure/redis_ledger.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"atlas/internal/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
)

const decrementScriptName = "stock_decrement"

// decrementScript 原子地执行"余额充足才扣减"。
// actor 已经保证串行，这里的检查是对多实例误部署/数据漂移的最后防线。
//
// KEYS[1]: 在库数量的 Key, 例如: stock:onhand:{product_123}
// ARGV[1]: 扣减数量
var decrementScript = `
local onhand = tonumber(redis.call('get', KEYS[1]))
if not onhand or onhand < tonumber(ARGV[1]) then
    return -1
end
return redis.call('decrby', KEYS[1], ARGV[1])
`

// RedisLedger 是 Ledger 的 Redis 实现。
// 订单库走 MySQL，库存账本刻意选了不支持多行事务的存储：
// 一致性完全由 Saga 加预占的流程保证，这是本系统的设计约束。
type RedisLedger struct {
	redisClient *redis.Client
}

// NewRedisLedger 创建一个新的 Redis 账本实例，创建时加载所需的 Lua 脚本。
func NewRedisLedger(redisClient *redis.Client) (*RedisLedger, error) {
	if err := redisClient.LoadScriptFromContent(decrementScriptName, decrementScript); err != nil {
		return nil, fmt.Errorf("failed to load stock decrement script: %w", err)
	}
	return &RedisLedger{redisClient: redisClient}, nil
}

func onHandKey(productID string) string {
	// hash tag 保证集群模式下同一商品的操作落在同一 slot
	return fmt.Sprintf("stock:onhand:{%s}", productID)
}

func (l *RedisLedger) OnHand(ctx context.Context, productID string) (int, error) {
	val, err := l.redisClient.GetClient().Get(ctx, onHandKey(productID)).Int()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read on-hand for %s: %w", productID, err)
	}
	return val, nil
}

func (l *RedisLedger) Decrement(ctx context.Context, productID string, quantity int) error {
	result, err := l.redisClient.RunScript(ctx, decrementScriptName, []string{onHandKey(productID)}, quantity)
	if err != nil {
		return fmt.Errorf("failed to run stock decrement script: %w", err)
	}
	code, ok := result.(int64)
	if !ok {
		return fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	if code < 0 {
		return fmt.Errorf("ledger underflow for product %s: decrement %d rejected", productID, quantity)
	}
	return nil
}

func (l *RedisLedger) Increment(ctx context.Context, productID string, quantity int) error {
	return l.redisClient.GetClient().IncrBy(ctx, onHandKey(productID), int64(quantity)).Err()
}

func (l *RedisLedger) Set(ctx context.Context, productID string, quantity int) error {
	return l.redisClient.GetClient().Set(ctx, onHandKey(productID), quantity, 0).Err()
}
