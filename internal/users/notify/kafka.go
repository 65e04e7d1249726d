// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"fmt"

	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/kafka"
)

// Event types, appended to the topic prefix.
const (
	EventVerificationRequested  = "user.verification_requested"
	EventPasswordResetRequested = "user.password_reset_requested"
	EventWelcome                = "user.welcome"
	EventPasswordChanged        = "user.password_changed"
)

const (
	aggregateType = "user"
	eventSource   = "yomira-identity"
)

// Publisher is the subset of [*kafka.Producer] the notifier relies on.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Payload is the data section of every notification event.
type Payload struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Link  string `json:"link,omitempty"`
}

// # Kafka Notifier

// KafkaNotifier publishes notifications as events for an external mailer.
type KafkaNotifier struct {
	publisher   Publisher
	topicPrefix string
	frontendURL string
	clock       clock.Clock
}

// NewKafkaNotifier creates a notifier publishing to "<topicPrefix>.<event>" topics.
func NewKafkaNotifier(publisher Publisher, topicPrefix, frontendURL string, clock clock.Clock) *KafkaNotifier {
	return &KafkaNotifier{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		frontendURL: frontendURL,
		clock:       clock,
	}
}

// Topic returns the fully qualified topic for an event type.
func (notifier *KafkaNotifier) Topic(eventType string) string {
	if notifier.topicPrefix == "" {
		return eventType
	}
	return notifier.topicPrefix + "." + eventType
}

func (notifier *KafkaNotifier) publish(ctx context.Context, eventType string, payload Payload) error {
	topic := notifier.Topic(eventType)

	// Keyed by email so every message for one mailbox lands on one partition.
	event, err := kafka.NewEvent(topic, payload.Email, aggregateType, eventSource, notifier.clock.Now(), payload)
	if err != nil {
		return fmt.Errorf("notify_build_event_failed: %w", err)
	}

	if requestID := ctxutil.GetRequestID(ctx); requestID != "" {
		event.WithCorrelationID(requestID)
	}

	if err := notifier.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("notify_publish_failed: %w", err)
	}
	return nil
}

// SendVerification publishes a verification request carrying the action link.
func (notifier *KafkaNotifier) SendVerification(ctx context.Context, email, token, name string) error {
	return notifier.publish(ctx, EventVerificationRequested, Payload{
		Email: email,
		Name:  name,
		Link:  ActionLink(notifier.frontendURL, VerifyEmailPath, token),
	})
}

// SendPasswordReset publishes a reset request carrying the action link.
func (notifier *KafkaNotifier) SendPasswordReset(ctx context.Context, email, token, name string) error {
	return notifier.publish(ctx, EventPasswordResetRequested, Payload{
		Email: email,
		Name:  name,
		Link:  ActionLink(notifier.frontendURL, ResetPasswordPath, token),
	})
}

// SendWelcome publishes a welcome event.
func (notifier *KafkaNotifier) SendWelcome(ctx context.Context, email, name string) error {
	return notifier.publish(ctx, EventWelcome, Payload{Email: email, Name: name})
}

// SendPasswordChanged publishes a password change confirmation.
func (notifier *KafkaNotifier) SendPasswordChanged(ctx context.Context, email, name string) error {
	return notifier.publish(ctx, EventPasswordChanged, Payload{Email: email, Name: name})
}
