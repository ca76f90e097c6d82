package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Isurika-2001/university-management-system-sub001/pkg/config"
)

const keyPrefix = "ums"

// NewRedis connects to Redis. Timeouts are short because the catalog cache
// is optional and a slow Redis must not stall module listings.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return client, nil
}

// Key builds a namespaced cache key, e.g. Key("catalog", courseID) -> "ums:catalog:<id>".
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
