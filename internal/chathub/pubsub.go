package chathub

import (
	"context"
	"encoding/json"
	"fmt"

	"livechat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChannel is the pub/sub channel shared by every server instance.
const RedisChannel = "chat:changes"

// RedisFeed is the alternative change feed: writers publish each change to a
// redis channel and every instance's hub subscribes to it.
type RedisFeed struct {
	Redis  *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{Redis: rdb, logger: logger}
}

// Publish serializes ev and broadcasts it to all subscribed instances.
func (f *RedisFeed) Publish(ctx context.Context, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	return f.Redis.Publish(ctx, RedisChannel, payload).Err()
}

// Listen subscribes to RedisChannel; the subscription is confirmed before
// the channel is returned.
func (f *RedisFeed) Listen(ctx context.Context) (<-chan models.Event, error) {
	pubsub := f.Redis.Subscribe(ctx, RedisChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", RedisChannel, err)
	}
	f.logger.Info("listening for row changes", zap.String("channel", RedisChannel))

	out := make(chan models.Event, 256)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := decodeEvent([]byte(msg.Payload))
				if err != nil {
					f.logger.Warn("skipping redis change message", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
