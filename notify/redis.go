package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// redisClient is the slice of *redis.Client the publisher needs.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes to Redis pub/sub channels named after the topic.
type RedisPublisher struct {
	client redisClient
	closer func() error
}

// NewRedisPublisher connects to addr ("host:port" or a redis:// URL)
// and checks the connection with PING.
func NewRedisPublisher(ctx context.Context, addr string) (*RedisPublisher, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisPublisher{client: rdb, closer: rdb.Close}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
