package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
)

const (
	// StreamName is the stream holding conversation events.
	StreamName = "SENTIMENT"

	// SubjectPrefix is the prefix for all conversation event subjects.
	SubjectPrefix = "sentiment"
)

// EventSubject returns the subject for a completed conversation, keyed by
// its overall direction so consumers can filter on it.
func EventSubject(eventType model.EventType, direction model.Direction) string {
	return fmt.Sprintf("%s.conversation.%s.%s", SubjectPrefix, eventType, subjectToken(string(direction)))
}

// subjectToken makes s safe for use as one subject token.
func subjectToken(s string) string {
	if s == "" || s == model.NotAvailable {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
}

// EventPublisher announces stored conversations on JetStream.
type EventPublisher struct {
	client *Client
}

// NewEventPublisher creates a publisher on client.
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// EnsureStream creates the event stream when it does not exist yet.
func (p *EventPublisher) EnsureStream(ctx context.Context) error {
	js := p.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Completed conversation sentiment events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.client.logger.Info("created event stream", zap.String("stream", StreamName))
	return nil
}

// PublishCompleted publishes a conversation-completed event.
func (p *EventPublisher) PublishCompleted(ctx context.Context, event *model.ConversationCompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.client.JetStream().Publish(ctx, EventSubject(event.Type, event.Direction), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
