package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"

	"github.com/redis/go-redis/v9"
)

// Publisher mirrors publications onto Redis pub/sub channels named
// <prefix><topic>.
type Publisher struct {
	client redis.UniversalClient
	prefix string
}

var _ port.MessagePublisher = (*Publisher)(nil)

// NewPublisher connects and pings the server.
func NewPublisher(cfg config.RedisConfig) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewPublisherWithClient(rdb, cfg.ChannelPrefix), nil
}

func NewPublisherWithClient(client redis.UniversalClient, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

func (p *Publisher) Channel(topic string) string {
	return p.prefix + topic
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload string) error {
	return p.client.Publish(ctx, p.Channel(topic), payload).Err()
}

func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
