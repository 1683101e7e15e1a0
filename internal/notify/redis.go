package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBridge republishes hub events on a Redis Pub/Sub channel so tools on
// other hosts can follow the printer
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *zap.Logger
}

// NewRedisBridge connects to addr and fails fast when Redis is unreachable
func NewRedisBridge(addr, channel string, hub *Hub, log *zap.Logger) (*RedisBridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if channel == "" {
		channel = "zpl-printer:events"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBridge{
		client:  rdb,
		channel: channel,
		hub:     hub,
		log:     log,
	}, nil
}

// Run forwards events until ctx is cancelled
func (b *RedisBridge) Run(ctx context.Context) {
	events, cancel := b.hub.Subscribe(256)
	defer cancel()

	b.log.Info("redis bridge started", zap.String("channel", b.channel))
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := b.publish(ctx, e); err != nil {
				b.log.Warn("failed to publish event to redis", zap.String("event", string(e.Type)), zap.Error(err))
			}
		}
	}
}

func (b *RedisBridge) publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Close releases the Redis connection
func (b *RedisBridge) Close() error {
	return b.client.Close()
}
