package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache grava o snapshot com TTL e publica a atualização no canal do stream
type RedisCache struct {
	Client  *redis.Client
	TTL     time.Duration
	Channel string
}

func NewRedisCache(c *redis.Client, ttl time.Duration, channel string) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl, Channel: channel}
}

func key(matchID string) string { return "odds:match:" + matchID }

// Put usa pipeline: SET e PUBLISH saem no mesmo round-trip
func (c *RedisCache) Put(ctx context.Context, s Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	upd, err := json.Marshal(Update{MatchID: s.MatchID, Payload: s})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	pipe := c.Client.Pipeline()
	pipe.Set(ctx, key(s.MatchID), b, c.TTL)
	if c.Channel != "" {
		pipe.Publish(ctx, c.Channel, upd)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put snapshot: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, matchID string) (*Snapshot, bool, error) {
	b, err := c.Client.Get(ctx, key(matchID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, true, nil
}
