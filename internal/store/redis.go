package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wheelhouse-game/backend/internal/engine"
)

// Redis shares rooms across server processes. Keys are namespaced
// "game:<code>" to match the original storage scheme. TTL is refreshed on
// every write so abandoned rooms eventually expire; zero disables expiry.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func redisKey(code string) string {
	return "game:" + code
}

func (r *Redis) Get(ctx context.Context, code string) (engine.Session, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Session{}, false, nil
	}
	if err != nil {
		return engine.Session{}, false, fmt.Errorf("redis get %s: %w", code, err)
	}
	s, err := decode(raw)
	if err != nil {
		return engine.Session{}, false, err
	}
	return s, true, nil
}

func (r *Redis) Set(ctx context.Context, code string, s engine.Session) error {
	raw, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(code), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", code, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, redisKey(code)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", code, err)
	}
	return nil
}
