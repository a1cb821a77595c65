package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "events"
)

// NewConnection creates a new RabbitMQ connection.
func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares a durable topic exchange; empty name means
// ExchangeName.
func DeclareExchange(ch *amqp091.Channel, name string) error {
	return ch.ExchangeDeclare(
		exchangeOrDefault(name),
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

func exchangeOrDefault(name string) string {
	if name == "" {
		return ExchangeName
	}
	return name
}
