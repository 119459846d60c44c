package kafka

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	raw kafka.Message
}

func newIncomingMessage(msg kafka.Message) *IncomingMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &IncomingMessage{
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Timestamp:   msg.Time,
		Topic:       msg.Topic,
		TraceParent: headers["traceparent"],
		TraceState:  headers["tracestate"],
		raw:         msg,
	}
}

// ParseEventRecord decodes and validates the message value as a scraped event record.
// Decode and validation failures are 400 errors: retrying the message cannot fix them.
func (m *IncomingMessage) ParseEventRecord() (*models.EventRecord, error) {
	var record models.EventRecord
	if err := json.Unmarshal(m.Value, &record); err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "failed to decode event record at offset %d: %s", m.Offset, err.Error())
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetSource returns the source named in the headers, if any
func (m *IncomingMessage) GetSource() models.Source {
	return models.Source(m.Headers["source"])
}
