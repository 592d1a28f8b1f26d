package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const eventsExchange = "otpbay.events"

// EventPublisher emits domain events for downstream consumers. Workflows
// treat publishing as best-effort: a broker outage must never fail a user
// action.
type EventPublisher interface {
	Publish(routingKey string, event interface{})
}

type rabbitPublisher struct {
	channel *amqp.Channel
	logger  *logrus.Logger
}

func NewEventPublisher(channel *amqp.Channel, logger *logrus.Logger) (EventPublisher, error) {
	if err := channel.ExchangeDeclare(
		eventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare events exchange: %w", err)
	}

	return &rabbitPublisher{
		channel: channel,
		logger:  logger,
	}, nil
}

func (p *rabbitPublisher) Publish(routingKey string, event interface{}) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Errorf("Failed to marshal event %s: %v", routingKey, err)
		return
	}

	err = p.channel.Publish(
		eventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.logger.Errorf("Failed to publish event %s: %v", routingKey, err)
	}
}

// NopPublisher drops all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(string, interface{}) {}
