package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/dealflow-ai/qualification-platform/internal/model"
)

const (
	// StreamName is the name of the qualification audit stream.
	StreamName = "QUALIFICATION"

	// SubjectPrefix is the prefix for all session event subjects.
	SubjectPrefix = "qual"
)

// Type classifies a session lifecycle event.
type Type string

const (
	TypeSessionCreated   Type = "session_created"
	TypeFieldsPrompted   Type = "fields_prompted"
	TypeFieldsMerged     Type = "fields_merged"
	TypeRecordsCommitted Type = "records_committed"
	TypeSessionFailed    Type = "session_failed"
	TypeSessionAbandoned Type = "session_abandoned"
	TypeSessionExpired   Type = "session_expired"
)

// SessionEvent is one entry in the qualification audit trail.
type SessionEvent struct {
	ID               string                      `json:"id"`
	SessionKey       string                      `json:"session_key"`
	Type             Type                        `json:"type"`
	State            model.State                 `json:"state"`
	Score            int                         `json:"score,omitempty"`
	MissingFields    []string                    `json:"missing_fields,omitempty"`
	CreatedRecordIDs map[model.ObjectType]string `json:"created_record_ids,omitempty"`
	Reason           string                      `json:"reason,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// Publisher emits session lifecycle events. The conversation layer depends
// on this interface so tests can swap in a no-op.
type Publisher interface {
	PublishSessionEvent(ctx context.Context, event *SessionEvent) error
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the audit stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Qualification session lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a session event. Dots are valid in
// session keys (Slack thread timestamps carry them) but delimit NATS subject
// tokens, so they are replaced before the key becomes a token.
func EventSubject(sessionKey string, eventType Type) string {
	key := strings.ReplaceAll(sessionKey, ".", "_")
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, key, eventType)
}

// PublishSessionEvent publishes a session event to JetStream.
func (m *StreamManager) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	subject := EventSubject(event.SessionKey, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards events. Used when NATS is disabled and in tests.
type NopPublisher struct{}

func (NopPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	return nil
}
