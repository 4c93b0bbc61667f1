package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"x2discord/internal/logging"
)

// RedisStore backs DedupStore with a Redis SET per channel, matching the
// wire layout in §6: x2discord:sent_links:<channel_id>.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore parses redisURL (a redis:// URL) and returns a RedisStore. The
// connection is lazy; failures surface per-call, not at construction time.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{
		client:  redis.NewClient(opts),
		timeout: 5 * time.Second,
	}, nil
}

// Contains reports SISMEMBER for the channel's dedup set. Any Redis error
// is treated as "unavailable" and logged, never propagated.
func (s *RedisStore) Contains(channelID int64, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ok, err := s.client.SIsMember(ctx, keyspace(channelID), key).Result()
	if err != nil {
		logging.L().Warn("dedup store unavailable", logging.Error(err))
		return false
	}
	return ok
}

// Add performs SADD, refreshes the set's TTL, then evicts an arbitrary
// member if the set has grown past MaxLinksPerChannel. Any Redis error is
// logged and the write is dropped; the caller never sees it.
func (s *RedisStore) Add(channelID int64, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	set := keyspace(channelID)
	if err := s.client.SAdd(ctx, set, key).Err(); err != nil {
		logging.L().Warn("dedup add failed", logging.Error(err))
		return
	}
	if err := s.client.Expire(ctx, set, TTL).Err(); err != nil {
		logging.L().Warn("dedup expire refresh failed", logging.Error(err))
	}

	count, err := s.client.SCard(ctx, set).Result()
	if err != nil {
		logging.L().Warn("dedup scard failed", logging.Error(err))
		return
	}
	overflow := count - MaxLinksPerChannel
	for i := int64(0); i < overflow; i++ {
		victim, err := s.client.SRandMember(ctx, set).Result()
		if err != nil {
			break
		}
		s.client.SRem(ctx, set, victim)
	}
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
