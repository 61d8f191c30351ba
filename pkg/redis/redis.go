package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mathisdt/webuntis-fetcher/config"
)

// Client Redis 客户端封装
// 用于记录已转发的 WebUntis 消息 ID 与 HTTP 接口限流
type Client struct {
	rdb goredis.UniversalClient
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb}, nil
}

// ── 已读消息集合 ──

const seenMessagesPrefix = "untis:messages:"

func seenKey(section string) string {
	return seenMessagesPrefix + section
}

// IsMessageSeen 消息是否已经转发过
func (c *Client) IsMessageSeen(ctx context.Context, section string, id int) (bool, error) {
	return c.rdb.SIsMember(ctx, seenKey(section), strconv.Itoa(id)).Result()
}

// MarkMessageSeen 记录消息已转发
func (c *Client) MarkMessageSeen(ctx context.Context, section string, id int) error {
	return c.rdb.SAdd(ctx, seenKey(section), strconv.Itoa(id)).Err()
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数，窗口内请求数不超过 limit 时返回 true
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
