package relay

import (
	"context"

	"go.uber.org/zap"

	"habitsync/internal/event"
	"habitsync/pkg/metrics"
	"habitsync/pkg/mq"
)

// RoutingPrefix prefixes every relay routing key: tracker.<event type>.
const RoutingPrefix = "tracker."

func RoutingKey(t event.Type) string {
	return RoutingPrefix + string(t)
}

// AMQP relays through a topic exchange. Each instance consumes from its own
// exclusive queue bound to tracker.#.
type AMQP struct {
	publisher *mq.Publisher
	url       string
	exchange  string
	origin    string
	logger    *zap.Logger
}

func NewAMQP(url, exchange, origin string, logger *zap.Logger) (*AMQP, error) {
	pub, err := mq.NewPublisher(url, exchange)
	if err != nil {
		return nil, err
	}
	return &AMQP{
		publisher: pub,
		url:       url,
		exchange:  exchange,
		origin:    origin,
		logger:    logger,
	}, nil
}

func (a *AMQP) Publish(ctx context.Context, e event.Event) {
	raw, err := encode(a.origin, e)
	if err != nil {
		metrics.IncrementRelayFailure("amqp", "publish")
		a.logger.Error("Failed to encode relay message", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := a.publisher.Publish(ctx, RoutingKey(e.Type()), raw); err != nil {
		metrics.IncrementRelayFailure("amqp", "publish")
		a.logger.Warn("Relay publish failed",
			zap.String("routing_key", RoutingKey(e.Type())),
			zap.Error(err),
		)
	}
}

func (a *AMQP) Run(ctx context.Context, deliver DeliverFunc) error {
	consumer, err := mq.NewConsumer(a.url, a.exchange, RoutingPrefix+"#", a.logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	consumer.SetHandler(func(ctx context.Context, body []byte) {
		forward(ctx, "amqp", a.origin, body, deliver, a.logger)
	})
	return consumer.StartConsuming(ctx)
}

func (a *AMQP) Close() error {
	a.publisher.Close()
	return nil
}

var (
	_ Relay = (*AMQP)(nil)
	_ Relay = (*Redis)(nil)
	_ Relay = Nop{}
)
