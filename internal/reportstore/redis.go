package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jimdaga/friend-frenzy/internal/insights"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "frenzy:insights:"

// RedisStore keeps one JSON value per poll.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisStore connects to the Redis server at redisURL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts)), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func key(pollID string) string {
	return keyPrefix + pollID
}

// Get loads the record of a poll. A missing key is (nil, nil).
func (s *RedisStore) Get(ctx context.Context, pollID string) (*insights.Record, error) {
	data, err := s.rdb.Get(ctx, key(pollID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load insights record: %w", err)
	}

	var rec insights.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode insights record: %w", err)
	}
	return &rec, nil
}

// Put overwrites the record of a poll.
func (s *RedisStore) Put(ctx context.Context, pollID string, rec insights.Record) error {
	rec.PollID = pollID
	rec.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode insights record: %w", err)
	}

	if err := s.rdb.Set(ctx, key(pollID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save insights record: %w", err)
	}
	return nil
}

// Close closes the Redis client connection
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
