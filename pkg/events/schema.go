package events

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	// EventTypeCanonical carries a new or changed canonical event
	EventTypeCanonical EventType = "event.canonical"
	// EventTypeDuplicateMatch records an accepted duplicate pairing for audit
	EventTypeDuplicateMatch EventType = "event.duplicate_match"
	// EventTypeSuperseded retires a canonical event that was folded into another
	EventTypeSuperseded EventType = "event.superseded"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"` // Batch that produced the event
}

// CanonicalEventMessage is emitted for every canonical event whose content changed
type CanonicalEventMessage struct {
	BaseEvent
	ID          string             `json:"id"`
	MergedFrom  []string           `json:"merged_from"`
	Data        models.EventRecord `json:"data"`
	Fingerprint string             `json:"fingerprint"`
}

// DuplicateMatchMessage is emitted for every match that was folded into a canonical event
type DuplicateMatchMessage struct {
	BaseEvent
	CanonicalID string  `json:"canonical_id"`
	Event1ID    string  `json:"event1_id"`
	Event2ID    string  `json:"event2_id"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// SupersededMessage tells consumers to replace a previously emitted canonical event with
// the one it was merged into
type SupersededMessage struct {
	BaseEvent
	ID         string `json:"id"`
	MergedInto string `json:"merged_into"`
}

// NewCanonicalEventMessage wraps a canonical event for the wire
func NewCanonicalEventMessage(event models.CanonicalEvent, correlationID string, now time.Time) *CanonicalEventMessage {
	return &CanonicalEventMessage{
		BaseEvent: BaseEvent{
			EventType:     EventTypeCanonical,
			SchemaVersion: SchemaVersion,
			Timestamp:     now,
			CorrelationID: correlationID,
		},
		ID:          event.ID,
		MergedFrom:  event.MergedFrom,
		Data:        event.EventRecord,
		Fingerprint: event.Fingerprint,
	}
}

// NewDuplicateMatchMessage wraps an accepted match for the wire
func NewDuplicateMatchMessage(match models.DuplicateMatch, canonicalID, correlationID string, now time.Time) *DuplicateMatchMessage {
	return &DuplicateMatchMessage{
		BaseEvent: BaseEvent{
			EventType:     EventTypeDuplicateMatch,
			SchemaVersion: SchemaVersion,
			Timestamp:     now,
			CorrelationID: correlationID,
		},
		CanonicalID: canonicalID,
		Event1ID:    match.Event1ID,
		Event2ID:    match.Event2ID,
		Confidence:  match.Confidence,
		Reason:      match.Reason,
	}
}

// NewSupersededMessage wraps a retired canonical ID for the wire
func NewSupersededMessage(s Supersession, correlationID string, now time.Time) *SupersededMessage {
	return &SupersededMessage{
		BaseEvent: BaseEvent{
			EventType:     EventTypeSuperseded,
			SchemaVersion: SchemaVersion,
			Timestamp:     now,
			CorrelationID: correlationID,
		},
		ID:         s.ID,
		MergedInto: s.MergedInto,
	}
}
