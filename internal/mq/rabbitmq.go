package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dawgsconnect/jobboard/config"
)

// RabbitMQClient publishes through a topic exchange with publisher
// confirms. Each channel name is both the routing key and the name of the
// queue bound to it, so events published before any worker starts are kept.
type RabbitMQClient struct {
	conn            *amqp.Connection
	exchange        string
	queueDurable    bool
	queueAutoDelete bool
	prefetchCount   int

	mu        sync.Mutex
	publisher *amqp.Channel
	bound     map[string]bool
}

// NewRabbitMQClient dials the broker and declares the events exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		exchange = "jobboard.events"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	r := &RabbitMQClient{
		conn:            conn,
		exchange:        exchange,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		prefetchCount:   cfg.PrefetchCount,
		bound:           map[string]bool{},
	}

	publisher, err := conn.Channel()
	if err == nil {
		err = publisher.Confirm(false)
	}
	if err == nil {
		err = r.declareExchange(publisher)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq publisher: %w", err)
	}
	r.publisher = publisher
	return r, nil
}

// Publish routes a message to channel and waits for the broker to confirm it.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	msg := toPublishing(data, attrs, r.queueDurable)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.bound[channel] {
		if err := r.bindQueue(r.publisher, channel); err != nil {
			return "", err
		}
		r.bound[channel] = true
	}

	confirm, err := r.publisher.PublishWithDeferredConfirmWithContext(ctx, r.exchange, channel, false, false, msg)
	if err != nil {
		return "", err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return "", err
	}
	if !acked {
		return "", fmt.Errorf("rabbitmq rejected message on %s", channel)
	}
	return msg.MessageId, nil
}

// Subscribe consumes channel's queue on a dedicated AMQP channel until ctx
// is done. Failed deliveries are requeued unless marked Permanent.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq consumer: %w", err)
	}
	defer ch.Close()

	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return err
		}
	}
	if err := r.declareExchange(ch); err != nil {
		return err
	}
	if err := r.bindQueue(ch, channel); err != nil {
		return err
	}

	consumerTag := "jobboard-" + uuid.NewString()
	deliveries, err := ch.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, fromDelivery(delivery)); err != nil {
				_ = delivery.Nack(false, !IsPermanent(err))
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publisher channel and the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publisher != nil {
		_ = r.publisher.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(r.exchange, amqp.ExchangeTopic, r.queueDurable, false, false, false, nil)
}

func (r *RabbitMQClient) bindQueue(ch *amqp.Channel, channel string) error {
	if _, err := ch.QueueDeclare(channel, r.queueDurable, r.queueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", channel, err)
	}
	if err := ch.QueueBind(channel, channel, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", channel, err)
	}
	return nil
}

func toPublishing(data []byte, attrs map[string]string, persistent bool) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Headers:      amqp.Table{},
		Body:         data,
	}
	if persistent {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		if key == attrContentType {
			msg.ContentType = value
			continue
		}
		msg.Headers[key] = value
	}
	return msg
}

func fromDelivery(d amqp.Delivery) Message {
	attrs := make(map[string]string, len(d.Headers)+1)
	for key, value := range d.Headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	if d.ContentType != "" {
		attrs[attrContentType] = d.ContentType
	}
	return Message{ID: d.MessageId, Data: d.Body, Attributes: attrs}
}
