// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client 封装了 go-redis 客户端，并维护一组按名字预加载的 Lua 脚本。
// 需要原子性的读改写（例如库存扣减）通过 Lua 脚本在 Redis 端一次完成。
type Client struct {
	client goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 创建一个新的客户端。addrs 格式为 "host1:port1,host2:port2"，
// 多于一个地址时使用集群模式。
func NewClient(addrs string) (*Client, error) {
	addrList := strings.Split(addrs, ",")
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: addrList,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addrs, err)
	}

	return &Client{
		client:  client,
		scripts: make(map[string]*goredis.Script),
	}, nil
}

// LoadScriptFromContent 注册一段 Lua 脚本并命名，之后通过 RunScript 调用。
func (c *Client) LoadScriptFromContent(name, content string) error {
	if content == "" {
		return fmt.Errorf("script %q is empty", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = goredis.NewScript(content)
	return nil
}

// RunScript 执行一段已注册的脚本。底层使用 EVALSHA，未命中时自动回退 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("lua script %q is not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

// GetClient 暴露底层客户端，供需要 pipeline 等高级用法的调用方使用。
func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.client.Close()
}
