package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
)

// RedisCartSessions remembers session carts across processes. Each read or
// write slides the expiry forward by ttl.
type RedisCartSessions struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCartSessions(rdb redis.Cmdable, ttl time.Duration) *RedisCartSessions {
	if ttl <= 0 {
		ttl = model.CartSessionTTL
	}
	return &RedisCartSessions{rdb: rdb, ttl: ttl}
}

func (s *RedisCartSessions) key(sessionKey string) string {
	return fmt.Sprintf("cart:%s", sessionKey)
}

func (s *RedisCartSessions) GetCartID(ctx context.Context, sessionKey string) (string, bool, error) {
	id, err := s.rdb.GetEx(ctx, s.key(sessionKey), s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errx.WrapRedis(err)
	}
	return id, true, nil
}

func (s *RedisCartSessions) SetCartID(ctx context.Context, sessionKey, cartID string) error {
	return errx.WrapRedis(s.rdb.Set(ctx, s.key(sessionKey), cartID, s.ttl).Err())
}

func (s *RedisCartSessions) Forget(ctx context.Context, sessionKey string) error {
	return errx.WrapRedis(s.rdb.Del(ctx, s.key(sessionKey)).Err())
}

var _ model.CartSessionStore = (*RedisCartSessions)(nil)
