package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	return get(ctx, s.client, key)
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv error: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("kv error: %w", err)
	}
	return nil
}

// InPipeline queues mutations into MULTI/EXEC transaction
// The transaction is discarded if fn fails or panics
func (s *RedisStore) InPipeline(ctx context.Context, fn func(Pipeline) error) (err error) {
	tx := s.client.TxPipeline()
	executed := false

	defer func() {
		if !executed {
			tx.Discard()
		}
	}()

	err = fn(&redisPipeline{ctx: ctx, reader: s.client, tx: tx})
	if err != nil {
		return err
	}

	executed = true
	if _, err := tx.Exec(ctx); err != nil {
		return fmt.Errorf("kv pipeline error: %w", err)
	}

	return nil
}

type redisPipeline struct {
	// Context of the InPipeline call, queued commands are sent with it on Exec
	ctx context.Context

	reader redis.Cmdable
	tx     redis.Pipeliner
}

func (p *redisPipeline) Get(ctx context.Context, key string) (string, error) {
	return get(ctx, p.reader, key)
}

func (p *redisPipeline) Set(key string, value string, ttl time.Duration) {
	p.tx.Set(p.ctx, key, value, ttl)
}

func (p *redisPipeline) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	p.tx.Del(p.ctx, keys...)
}

func get(ctx context.Context, c redis.Cmdable, key string) (string, error) {
	value, err := c.Get(ctx, key).Result()

	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, redis.Nil):
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("kv error: %w", err)
	}
}
