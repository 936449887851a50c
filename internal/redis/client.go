package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"pulse-carescore/internal/config"
)

// Client 供上层签名使用的客户端类型别名
type Client = redis.Client

// NewRedisClient 创建 Redis 客户端
// 同一个连接池承载读数缓存、持续状态和 Streams 接入；
// 读超时必须高于消费者的 XREADGROUP 阻塞时长（5 秒）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
	})
}

// Ping 启动时验证 Redis 可达
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func Close(client *redis.Client) error {
	return client.Close()
}
