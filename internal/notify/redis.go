package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes to a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects and pings the server so a bad address fails at
// startup.
func NewRedisSink(ctx context.Context, addr, password string, db int, channel string) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisSink{client: rdb, channel: channel}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, payload []byte) error {
	return s.client.Publish(ctx, s.channel, payload).Err()
}

func (s *RedisSink) Close() error { return s.client.Close() }
