package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dawgsconnect/jobboard/config"
)

// Channels used by the job board.
const (
	ChannelVerification = "auth.verification"
	ChannelJobCreated   = "job.created"
	ChannelJobApplied   = "job.applied"
)

const (
	attrContentType = "content_type"
	attrEvent       = "event"
)

// VerificationEvent carries the code a new account must confirm.
type VerificationEvent struct {
	Email  string    `json:"email"`
	Code   string    `json:"code"`
	SentAt time.Time `json:"sent_at"`
}

// JobCreatedEvent announces a posting waiting for review.
type JobCreatedEvent struct {
	JobID    string    `json:"job_id"`
	Title    string    `json:"title"`
	Company  string    `json:"company"`
	PostedBy string    `json:"posted_by"`
	At       time.Time `json:"at"`
}

// JobAppliedEvent records that a user started an application.
type JobAppliedEvent struct {
	JobID  string    `json:"job_id"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// PublishEvent JSON-encodes event and publishes it on channel.
func (m *MQ) PublishEvent(ctx context.Context, channel string, event any) error {
	if m == nil || m.backend == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = m.backend.Publish(ctx, channel, data, map[string]string{
		attrContentType: "application/json",
		attrEvent:       channel,
	})
	return err
}

// Decode unmarshals a JSON event. Malformed payloads are permanent failures.
func Decode(msg Message, event any) error {
	if err := json.Unmarshal(msg.Data, event); err != nil {
		return Permanent(fmt.Errorf("decode message %s: %w", msg.ID, err))
	}
	return nil
}

// Backend names accepted in MQ_BACKEND.
const (
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendMemory   = "memory"
)

// NewFromConfig opens the configured broker. An empty backend yields a nil
// *MQ, which silently drops published events.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case BackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	case BackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	case BackendMemory:
		return New(NewMemoryBroker()), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
