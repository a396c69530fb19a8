package cache

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/util"
)

const keyPrefix = "rmbg:"

// Cache 按输入内容缓存合成后的 PNG
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New 创建连接并 Ping 一次，连不上直接返回错误
func New(ctx context.Context, opts Options) (*Cache, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", opts.Addr, err)
	}

	return &Cache{client: client, ttl: opts.TTL}, nil
}

// Key 影响输出字节的配置都参与组成 key：模型、压缩级别、是否跳过已抠图的输入
func Key(digest, model string, level png.CompressionLevel, skipTransparent bool) string {
	skip := "0"
	if skipTransparent {
		skip = "1"
	}
	return fmt.Sprintf("%s%s:%s:c%d:s%s", keyPrefix, digest, model, level, skip)
}

// Get 未命中时返回 nil, nil
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	util.Logger.Debug("cache hit", zap.String("key", key))
	return data, nil
}

func (c *Cache) Set(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
