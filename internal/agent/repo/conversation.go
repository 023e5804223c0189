package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

// RedisConversationRepository stores the turns of each session as a Redis
// list capped at maxTurns entries.
type RedisConversationRepository struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	maxTurns int
}

func NewRedisConversationRepository(rdb redis.Cmdable, cfg model.ConversationConfig) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: cfg.TTL, maxTurns: cfg.MaxTurns}
}

func (r *RedisConversationRepository) conversationKey(sessionKey string) string {
	return fmt.Sprintf("conversation:%s:messages", sessionKey)
}

func (r *RedisConversationRepository) AddTurns(ctx context.Context, sessionKey string, turns ...model.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			logx.Error().Err(err).Str("session", sessionKey).Msg("failed to marshal turn")
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, b)
	}
	key := r.conversationKey(sessionKey)

	var expire *redis.BoolCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		if r.maxTurns > 0 {
			p.LTrim(ctx, key, int64(-r.maxTurns), -1)
		}
		// extend TTL on touch
		if r.ttl > 0 {
			expire = p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append turns to redis")
		return errx.WrapRedis(err)
	}
	if expire != nil && !expire.Val() {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on conversation key")
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, sessionKey string) ([]model.ConversationTurn, error) {
	key := r.conversationKey(sessionKey)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.ConversationTurn{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}
	return decodeTurns(sessionKey, rows)
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, sessionKey string) error {
	key := r.conversationKey(sessionKey)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// decodeTurns skips unreadable entries instead of failing the whole history.
func decodeTurns(sessionKey string, rows []string) ([]model.ConversationTurn, error) {
	turns := make([]model.ConversationTurn, 0, len(rows))
	for i, s := range rows {
		var t model.ConversationTurn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Warn().Err(err).Str("session", sessionKey).Int("index", i).Msg("skipping unreadable turn")
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
