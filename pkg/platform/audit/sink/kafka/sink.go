// Package kafka forwards audit events to a Kafka topic while keeping a local
// store authoritative for reads.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"identix/internal/platform/kafka/producer"
	audit "identix/pkg/platform/audit"
)

// Producer is the subset of the Kafka producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Store appends every event to the local store, then publishes it to Kafka.
// Reads are served from the local store.
type Store struct {
	local    audit.Store
	producer Producer
	topic    string
}

func New(local audit.Store, p Producer, topic string) *Store {
	return &Store{local: local, producer: p, topic: topic}
}

type message struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	IssuerID  string    `json:"issuer_id,omitempty"`
	Token     string    `json:"token,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if err := s.local.Append(ctx, event); err != nil {
		return err
	}

	payload, err := json.Marshal(message{
		Timestamp: event.Timestamp,
		Category:  string(event.Category),
		Action:    event.Action,
		Subject:   event.Subject,
		IssuerID:  event.IssuerID,
		Token:     event.Token,
		Outcome:   event.Outcome,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	// Keyed by subject so one identifier's events stay ordered within a partition.
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: map[string]string{
			"category": string(event.Category),
			"action":   event.Action,
		},
	})
}

func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	return s.local.ListBySubject(ctx, subject)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.local.ListRecent(ctx, limit)
}

var _ audit.Store = (*Store)(nil)
