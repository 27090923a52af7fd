package capacity

import (
	"context"
	"fmt"
	"time"

	domain "ilpotaxi/internal/modules/operator/domain/capacity"

	"github.com/redis/go-redis/v9"
)

const keyTTL = time.Hour

// redisCounter keeps each operator's active conversations in a Redis set, so
// SADD/SREM give the idempotency the contract requires and SCARD is the live
// count every process observes.
type redisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) domain.Counter {
	return &redisCounter{rdb: rdb}
}

func key(operatorUuid string) string {
	return fmt.Sprintf("operator:active:%s", operatorUuid)
}

func (c *redisCounter) Increment(ctx context.Context, operatorUuid, conversationUuid string) error {
	k := key(operatorUuid)
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, k, conversationUuid)
	pipe.Expire(ctx, k, keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCounter) Decrement(ctx context.Context, operatorUuid, conversationUuid string) error {
	return c.rdb.SRem(ctx, key(operatorUuid), conversationUuid).Err()
}

func (c *redisCounter) ListActive(ctx context.Context, operatorUuid string) ([]string, error) {
	return c.rdb.SMembers(ctx, key(operatorUuid)).Result()
}

func (c *redisCounter) ActiveCount(ctx context.Context, operatorUuid string) (int, error) {
	n, err := c.rdb.SCard(ctx, key(operatorUuid)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
