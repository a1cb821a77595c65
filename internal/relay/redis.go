package relay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"habitsync/internal/event"
	"habitsync/pkg/metrics"
)

const publishTimeout = 2 * time.Second

// Redis relays over PUBLISH/SUBSCRIBE on one channel.
type Redis struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

func NewRedis(client *redis.Client, channel, origin string, logger *zap.Logger) *Redis {
	return &Redis{
		client:  client,
		channel: channel,
		origin:  origin,
		logger:  logger,
	}
}

// Publish never fails the caller; errors are logged and counted.
func (r *Redis) Publish(ctx context.Context, e event.Event) {
	raw, err := encode(r.origin, e)
	if err != nil {
		metrics.IncrementRelayFailure("redis", "publish")
		r.logger.Error("Failed to encode relay message", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		metrics.IncrementRelayFailure("redis", "publish")
		r.logger.Warn("Relay publish failed",
			zap.String("channel", r.channel),
			zap.String("type", string(e.Type())),
			zap.Error(err),
		)
	}
}

func (r *Redis) Run(ctx context.Context, deliver DeliverFunc) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("Relay subscribed", zap.String("backend", "redis"), zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			forward(ctx, "redis", r.origin, []byte(msg.Payload), deliver, r.logger)
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
