// Package relay forwards Change Events between server processes that share
// one store. Each instance publishes what its gateway emits and hands events
// that originated elsewhere to its local hub. Like the hub, it is
// at-most-once.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"habitsync/internal/event"
	"habitsync/pkg/config"
	"habitsync/pkg/metrics"
	pkgredis "habitsync/pkg/redis"
)

// DeliverFunc receives a decoded event from another instance.
type DeliverFunc func(ctx context.Context, e event.Event)

type Relay interface {
	Publish(ctx context.Context, e event.Event)
	// Run delivers remote events until ctx is done.
	Run(ctx context.Context, deliver DeliverFunc) error
	Close() error
}

// message is the relay wire form: the event envelope tagged with the
// publishing instance.
type message struct {
	Origin string `json:"origin"`
	event.Envelope
}

func encode(origin string, e event.Event) ([]byte, error) {
	env, err := event.NewEnvelope(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(message{Origin: origin, Envelope: env})
}

// decode returns nil, nil for messages this instance published itself.
func decode(origin string, raw []byte) (event.Event, error) {
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode relay message: %w", err)
	}
	if m.Origin == origin {
		return nil, nil
	}
	return m.Envelope.Event()
}

// forward decodes raw and delivers it unless it is an echo.
func forward(ctx context.Context, backend, origin string, raw []byte, deliver DeliverFunc, logger *zap.Logger) {
	e, err := decode(origin, raw)
	if err != nil {
		metrics.IncrementRelayFailure(backend, "decode")
		logger.Warn("Dropping relay message", zap.String("backend", backend), zap.Error(err))
		return
	}
	if e == nil {
		return
	}
	deliver(ctx, e)
}

// Nop is the single-instance relay.
type Nop struct{}

func (Nop) Publish(context.Context, event.Event) {}

func (Nop) Run(ctx context.Context, _ DeliverFunc) error {
	<-ctx.Done()
	return nil
}

func (Nop) Close() error { return nil }

// Open builds the relay named by kind: none, redis or amqp.
func Open(ctx context.Context, kind string, redisCfg config.RedisConfig, mqCfg config.MQConfig, origin string, logger *zap.Logger) (Relay, error) {
	switch strings.ToLower(kind) {
	case "", "none":
		return Nop{}, nil
	case "redis":
		client, err := pkgredis.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, redisCfg.Channel, origin, logger), nil
	case "amqp", "rabbitmq":
		return NewAMQP(mqCfg.URL, mqCfg.Exchange, origin, logger)
	default:
		return nil, fmt.Errorf("unknown sync relay %q", kind)
	}
}

// reconnectDelay spaces Run retries in RunForever.
const reconnectDelay = 5 * time.Second

// RunForever keeps r.Run going until ctx is done, logging each failure.
func RunForever(ctx context.Context, r Relay, deliver DeliverFunc, logger *zap.Logger) {
	for {
		err := r.Run(ctx, deliver)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("Relay subscription ended, retrying", zap.Error(err), zap.Duration("delay", reconnectDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}
