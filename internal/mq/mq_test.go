package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dawgsconnect/jobboard/config"
)

func TestNilMQDropsEvents(t *testing.T) {
	var m *MQ
	if err := m.PublishEvent(context.Background(), ChannelJobApplied, JobAppliedEvent{JobID: "j1"}); err != nil {
		t.Fatalf("publish on nil MQ: %v", err)
	}
	if err := m.Subscribe(context.Background(), ChannelJobApplied, nil); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close nil MQ: %v", err)
	}
}

func TestMemoryBrokerDeliversEvents(t *testing.T) {
	m := New(NewMemoryBroker())
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.PublishEvent(ctx, ChannelJobApplied, JobAppliedEvent{JobID: "j1", UserID: "u1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	received := make(chan JobAppliedEvent, 1)
	go func() {
		_ = m.Subscribe(ctx, ChannelJobApplied, func(ctx context.Context, msg Message) error {
			if msg.Attributes[attrEvent] != ChannelJobApplied {
				t.Errorf("unexpected attributes: %v", msg.Attributes)
			}
			var event JobAppliedEvent
			if err := Decode(msg, &event); err != nil {
				return err
			}
			received <- event
			return nil
		})
	}()

	select {
	case event := <-received:
		if event.JobID != "j1" || event.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for event")
	}
}

func TestMemoryBrokerRequeuesTransientFailures(t *testing.T) {
	broker := NewMemoryBroker()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := broker.Publish(ctx, "jobs", []byte("x"), nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var attempts atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = broker.Subscribe(ctx, "jobs", func(ctx context.Context, msg Message) error {
			if attempts.Add(1) < 3 {
				return errors.New("try again")
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("message was not redelivered, attempts=%d", attempts.Load())
	}
}

func TestDecodeMarksMalformedPayloadPermanent(t *testing.T) {
	var event JobAppliedEvent
	err := Decode(Message{ID: "m1", Data: []byte("{not json")}, &event)
	if err == nil || !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if IsPermanent(errors.New("plain")) {
		t.Fatalf("plain errors must not be permanent")
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) should be nil")
	}
}

func TestNewFromConfigRejectsUnknownBackend(t *testing.T) {
	m, err := NewFromConfig(context.Background(), config.MQConfig{})
	if err != nil || m != nil {
		t.Fatalf("expected disabled MQ, got %v, %v", m, err)
	}
	if _, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestAMQPAttributeMapping(t *testing.T) {
	msg := toPublishing([]byte(`{}`), map[string]string{
		attrContentType: "application/json",
		attrEvent:       ChannelJobCreated,
	}, true)
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected publishing %+v", msg)
	}
	if _, ok := msg.Headers[attrContentType]; ok {
		t.Fatalf("content type must not be duplicated into headers")
	}
	if msg.MessageId == "" {
		t.Fatalf("message id not set")
	}

	got := fromDelivery(amqp.Delivery{
		MessageId:   msg.MessageId,
		ContentType: msg.ContentType,
		Headers:     amqp.Table{attrEvent: ChannelJobCreated, "attempt": int32(2)},
		Body:        msg.Body,
	})
	if got.ID != msg.MessageId || got.Attributes[attrEvent] != ChannelJobCreated {
		t.Fatalf("unexpected message %+v", got)
	}
	if got.Attributes[attrContentType] != "application/json" || got.Attributes["attempt"] != "2" {
		t.Fatalf("unexpected attributes %v", got.Attributes)
	}

	if transient := toPublishing(nil, nil, false); transient.DeliveryMode != amqp.Transient {
		t.Fatalf("expected transient delivery, got %d", transient.DeliveryMode)
	}
}
