// Package events handles emission of canonical events and match audit records
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Publisher writes a batch of events to the output topic
type Publisher interface {
	Publish(ctx context.Context, events []kafka.OutgoingEvent) error
}

// MatchedPair is an accepted match together with the canonical event it produced
type MatchedPair struct {
	Match       models.DuplicateMatch
	CanonicalID string
}

// Supersession retires a canonical ID whose records now belong to another canonical event
type Supersession struct {
	ID         string
	MergedInto string
}

// Batch is everything one resolved batch publishes
type Batch struct {
	Canonical  []models.CanonicalEvent
	Superseded []Supersession
	Matches    []MatchedPair
}

// Len returns the number of messages the batch produces
func (b Batch) Len() int {
	return len(b.Canonical) + len(b.Superseded) + len(b.Matches)
}

// Emitter handles event emission for fern
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	now       func() time.Time
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EmitBatch publishes the canonical events, then the superseded IDs, then the match audit
// records in a single write. Canonical events are keyed by ID so updates to one event stay
// ordered; a supersession is keyed by the retired ID so it lands after that ID's last update.
func (e *Emitter) EmitBatch(ctx context.Context, correlationID string, batch Batch) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatch")
	defer span.End()

	if batch.Len() == 0 {
		return nil
	}

	now := e.now()
	out := make([]kafka.OutgoingEvent, 0, batch.Len())
	for _, event := range batch.Canonical {
		out = append(out, kafka.OutgoingEvent{
			Key:           event.ID,
			EventType:     string(EventTypeCanonical),
			SchemaVersion: SchemaVersion,
			Value:         NewCanonicalEventMessage(event, correlationID, now),
		})
	}
	for _, s := range batch.Superseded {
		out = append(out, kafka.OutgoingEvent{
			Key:           s.ID,
			EventType:     string(EventTypeSuperseded),
			SchemaVersion: SchemaVersion,
			Value:         NewSupersededMessage(s, correlationID, now),
		})
	}
	for _, pair := range batch.Matches {
		out = append(out, kafka.OutgoingEvent{
			Key:           pair.CanonicalID,
			EventType:     string(EventTypeDuplicateMatch),
			SchemaVersion: SchemaVersion,
			Value:         NewDuplicateMatchMessage(pair.Match, pair.CanonicalID, correlationID, now),
		})
	}

	if err := e.publisher.Publish(ctx, out); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"correlation_id": correlationID,
			"canonical":      len(batch.Canonical),
			"superseded":     len(batch.Superseded),
			"matches":        len(batch.Matches),
		}).Error("Failed to emit batch")
		return err
	}

	return nil
}
