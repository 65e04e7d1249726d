// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kafka

import (
	"encoding/json"
	"time"

	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

// Event represents the standard envelope for every message the identity
// service publishes.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a new event with a time-ordered ID stamped at occurredAt.
func NewEvent(eventType, aggregateID, aggregateType, source string, occurredAt time.Time, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     occurredAt.UTC(),
		Source:        source,
		Data:          dataBytes,
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (event *Event) WithCorrelationID(id string) *Event {
	event.CorrelationID = id
	return event
}

// Marshal serializes the event to JSON bytes.
func (event *Event) Marshal() ([]byte, error) {
	return json.Marshal(event)
}
