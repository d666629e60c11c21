package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// consumptionTTL keeps month sets for two months past creation, long
// enough to outlive the month they meter.
const consumptionTTL = 62 * 24 * time.Hour

// RedisConsumptionStore keeps per-month consumption sets in Redis, one set
// per (user, capability, month). SADD gives first-consumption detection
// atomically across processes.
type RedisConsumptionStore struct {
	client redis.UniversalClient
}

// NewRedisConsumptionStore creates a Redis-backed ConsumptionStore.
func NewRedisConsumptionStore(client redis.UniversalClient) *RedisConsumptionStore {
	if client == nil {
		panic("entitlement: redis client is required")
	}
	return &RedisConsumptionStore{client: client}
}

func redisMonthKey(userID uuid.UUID, capability Capability, year int, month time.Month) string {
	return fmt.Sprintf("consumption:%s:%s:%04d-%02d", userID, capability, year, int(month))
}

func (s *RedisConsumptionStore) MarkConsumed(ctx context.Context, userID uuid.UUID, capability Capability, resourceID string, year int, month time.Month) (bool, error) {
	key := redisMonthKey(userID, capability, year, month)

	added, err := s.client.SAdd(ctx, key, resourceID).Result()
	if err != nil {
		return false, fmt.Errorf("record consumption: %w", err)
	}
	if added == 0 {
		return false, nil
	}
	if err := s.client.Expire(ctx, key, consumptionTTL).Err(); err != nil {
		return true, fmt.Errorf("set consumption ttl: %w", err)
	}
	return true, nil
}

func (s *RedisConsumptionStore) Consumed(ctx context.Context, userID uuid.UUID, capability Capability, resourceID string, year int, month time.Month) (bool, error) {
	seen, err := s.client.SIsMember(ctx, redisMonthKey(userID, capability, year, month), resourceID).Result()
	if err != nil {
		return false, fmt.Errorf("check consumption: %w", err)
	}
	return seen, nil
}

func (s *RedisConsumptionStore) Count(ctx context.Context, userID uuid.UUID, capability Capability, year int, month time.Month) (int, error) {
	n, err := s.client.SCard(ctx, redisMonthKey(userID, capability, year, month)).Result()
	if err != nil {
		return 0, fmt.Errorf("count consumption: %w", err)
	}
	return int(n), nil
}
