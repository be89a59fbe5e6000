package kafka

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// TopicPrefix namespaces every topic published by this repository.
const TopicPrefix = "storefront"

// Topic builds a topic name of the form storefront.<domain>.<action>.
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}

// Aggregate names the entity an event is about. Its ID is the partition key.
type Aggregate struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Event is the JSON envelope of a published message. Headers travel both in
// the envelope and as Kafka record headers so consumers can route without
// decoding the value.
type Event struct {
	ID            string            `json:"event_id"`
	Type          string            `json:"event_type"`
	Aggregate     Aggregate         `json:"aggregate"`
	Source        string            `json:"source"`
	OccurredAt    time.Time         `json:"occurred_at"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Data          json.RawMessage   `json:"data"`
}

// Option customizes an Event built by NewEvent.
type Option func(*Event)

// WithCorrelationID ties the event to the request that caused it. Empty ids
// are ignored.
func WithCorrelationID(id string) Option {
	return func(e *Event) {
		if id != "" {
			e.CorrelationID = id
		}
	}
}

// WithHeader attaches key=value to the event. Empty values are ignored.
func WithHeader(key, value string) Option {
	return func(e *Event) {
		if value == "" {
			return
		}
		if e.Headers == nil {
			e.Headers = make(map[string]string)
		}
		e.Headers[key] = value
	}
}

// NewEvent wraps data in an envelope with a fresh id and the current UTC time.
func NewEvent(eventType string, agg Aggregate, source string, data any, opts ...Option) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", eventType, err)
	}

	e := &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Aggregate:  agg,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Message renders the event as a record for topic, keyed by aggregate id.
func (e *Event) Message(topic string) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(e.Type)},
		{Key: "source", Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	for _, k := range slices.Sorted(maps.Keys(e.Headers)) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(e.Headers[k])})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(e.Aggregate.ID),
		Value:   value,
		Headers: headers,
		Time:    e.OccurredAt,
	}, nil
}
