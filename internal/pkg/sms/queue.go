package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Job is the payload published to the outbound SMS queue.
type Job struct {
	Phone     string    `json:"phone"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueueProvider hands messages to RabbitMQ for asynchronous delivery.
type QueueProvider struct {
	url   string
	queue string
}

func NewQueueProvider(url, queue string) *QueueProvider {
	return &QueueProvider{url: url, queue: queue}
}

func (p *QueueProvider) SendSMS(ctx context.Context, phone, text string) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(Job{Phone: phone, Text: text, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal sms job: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
