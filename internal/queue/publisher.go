package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher sends purchase events.  Callers log failures and carry on.
type Publisher interface {
	PublishPurchaseCompleted(ctx context.Context, ev PurchaseCompletedEvent) error
}

// AMQPPublisher dials the broker per publish.  Purchases are infrequent
// enough that a long-lived channel is not worth the reconnect handling.
type AMQPPublisher struct {
	url   string
	queue string
	log   zerolog.Logger
}

// NewAMQPPublisher returns a publisher for queue on the broker at url.
func NewAMQPPublisher(url, queue string, log zerolog.Logger) *AMQPPublisher {
	if queue == "" {
		queue = DefaultPurchaseQueue
	}
	return &AMQPPublisher{url: url, queue: queue, log: log.With().Str("component", "publisher").Logger()}
}

// PublishPurchaseCompleted publishes ev as a persistent message on the
// durable purchase queue.
func (p *AMQPPublisher) PublishPurchaseCompleted(ctx context.Context, ev PurchaseCompletedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := declareQueue(ch, p.queue); err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.TransactionID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn().Err(err).Str("tx_ref", ev.TransactionID).Msg("rabbitmq publish failed")
		return err
	}
	return nil
}

// DefaultPurchaseQueue is the durable queue carrying PurchaseCompletedEvent.
const DefaultPurchaseQueue = "purchase.completed"

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
}

// NopPublisher drops events.  Used when no broker is configured and in tests.
type NopPublisher struct{}

func (NopPublisher) PublishPurchaseCompleted(context.Context, PurchaseCompletedEvent) error {
	return nil
}
