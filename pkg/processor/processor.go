// Package processor accumulates scraped records from Kafka into batches, resolves each
// batch together with the related records of earlier batches into canonical events and
// publishes the ones whose content changed. Offsets are committed only after a batch has
// been published.
package processor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolution"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Committer acknowledges consumed messages
type Committer interface {
	Commit(ctx context.Context, msgs ...*kafka.IncomingMessage) error
}

// BatchEmitter publishes the output of one resolved batch
type BatchEmitter interface {
	EmitBatch(ctx context.Context, correlationID string, batch events.Batch) error
}

// Config configures batching
type Config struct {
	MaxBatchSize    int
	FlushTimeout    time.Duration
	QueueSize       int // Buffered messages between the consumer and the batch loop
	TrackerCapacity int // Canonical IDs and records remembered across batches
}

// DefaultConfig returns the batching defaults
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:    500,
		FlushTimeout:    5 * time.Second,
		QueueSize:       1000,
		TrackerCapacity: 100_000,
	}
}

// envelope is one consumed message and, when it decoded cleanly, its record
type envelope struct {
	msg    *kafka.IncomingMessage
	record *models.EventRecord
}

// Processor batches incoming records and resolves them into canonical events
type Processor struct {
	logger    ectologger.Logger
	resolver  *resolution.Resolver
	emitter   BatchEmitter
	committer Committer
	tracker   *fingerprint.Tracker
	snapshot  *snapshot
	config    Config
	in        chan *envelope
	newID     func() string
	running   atomic.Bool
}

// NewProcessor creates a new batch processor
func NewProcessor(logger ectologger.Logger, resolver *resolution.Resolver, emitter BatchEmitter, committer Committer, cfg Config) *Processor {
	defaults := DefaultConfig()
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaults.MaxBatchSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaults.FlushTimeout
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	return &Processor{
		logger:    logger,
		resolver:  resolver,
		emitter:   emitter,
		committer: committer,
		tracker:   fingerprint.NewTracker(cfg.TrackerCapacity),
		snapshot:  newSnapshot(cfg.TrackerCapacity),
		config:    cfg,
		in:        make(chan *envelope, cfg.QueueSize),
		newID:     func() string { return uuid.NewString() },
	}
}

// Handle decodes a consumed message and queues it for the next batch. It blocks while
// the queue is full. Undecodable messages are queued too so their offsets are committed
// in order with the rest of the batch.
func (p *Processor) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	env := &envelope{msg: msg}

	record, err := msg.ParseEventRecord()
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"key":       msg.Key,
		}).Warn("Skipping invalid event record")
		metrics.RecordConsumed(string(msg.GetSource()), "invalid")
	} else {
		env.record = record
		metrics.RecordConsumed(string(record.Source), "ok")
	}

	select {
	case p.in <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run accumulates queued records and flushes a batch when it reaches MaxBatchSize or
// FlushTimeout elapses. When ctx is cancelled any pending records are left uncommitted
// for redelivery. A batch that cannot be published stops the loop with an error.
func (p *Processor) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	ticker := time.NewTicker(p.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]*envelope, 0, p.config.MaxBatchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.WithField("pending", len(batch)).Info("Batch processor shutting down")
			return nil

		case env := <-p.in:
			batch = append(batch, env)

			if len(batch) >= p.config.MaxBatchSize {
				p.logger.WithField("batch_size", len(batch)).Debug("Batch size threshold reached")
				if err := p.processBatch(ctx, batch); err != nil {
					return err
				}
				batch = make([]*envelope, 0, p.config.MaxBatchSize)
				ticker.Reset(p.config.FlushTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				p.logger.WithField("batch_size", len(batch)).Debug("Batch timeout reached")
				if err := p.processBatch(ctx, batch); err != nil {
					return err
				}
				batch = make([]*envelope, 0, p.config.MaxBatchSize)
			}
		}
	}
}

// Healthy reports whether the batch loop is running
func (p *Processor) Healthy() bool {
	return p.running.Load()
}

// processBatch resolves, publishes and commits one batch
func (p *Processor) processBatch(ctx context.Context, batch []*envelope) error {
	batchID := p.newID()
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.processBatch")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":   batchID,
		"batch_size": len(batch),
	})

	fresh := latestRecords(batch)
	records := append(p.snapshot.related(fresh, p.resolver.MatchWindow()), fresh...)

	start := time.Now()
	result, err := p.resolver.Resolve(ctx, records)
	if err != nil {
		metrics.RecordBatch("failed", len(batch), 0)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("Batch abandoned on shutdown, leaving offsets uncommitted")
			return nil
		}
		return errors.Wrapf(err, "failed to resolve batch %s", batchID)
	}
	resolveSeconds := time.Since(start).Seconds()

	changed, fingerprints, err := p.changedEvents(result.Canonical)
	if err != nil {
		metrics.RecordBatch("failed", len(batch), resolveSeconds)
		return errors.Wrapf(err, "failed to fingerprint batch %s", batchID)
	}
	out := events.Batch{
		Canonical:  changed,
		Superseded: p.snapshot.supersessions(result.Canonical),
		Matches:    matchedPairs(result, changed),
	}

	publishStart := time.Now()
	if err := p.emitter.EmitBatch(ctx, batchID, out); err != nil {
		metrics.RecordBatch("failed", len(batch), resolveSeconds)
		return errors.Wrapf(err, "failed to publish batch %s", batchID)
	}
	metrics.RecordKafkaPublish(time.Since(publishStart).Seconds())

	for _, event := range changed {
		p.tracker.Record(event.ID, fingerprints[event.ID])
	}
	for _, sup := range out.Superseded {
		p.tracker.Forget(sup.ID)
	}
	p.snapshot.record(records, result, out.Superseded)
	metrics.SnapshotRecords.Set(float64(p.snapshot.Len()))

	msgs := make([]*kafka.IncomingMessage, len(batch))
	for i, env := range batch {
		msgs[i] = env.msg
	}
	if err := p.committer.Commit(ctx, msgs...); err != nil {
		// Published but not committed: the batch will be redelivered and deduplicated
		// again by fingerprint
		metrics.RecordBatch("uncommitted", len(batch), resolveSeconds)
		return errors.Wrapf(err, "failed to commit batch %s", batchID)
	}

	metrics.RecordBatch("ok", len(batch), resolveSeconds)
	metrics.RecordMatches(len(result.Accepted), len(result.Rejected))
	metrics.RecordCanonical(len(changed), len(result.Canonical)-len(changed), len(out.Superseded))

	log.WithFields(map[string]any{
		"records":    len(fresh),
		"related":    len(records) - len(fresh),
		"canonical":  len(result.Canonical),
		"published":  len(changed),
		"superseded": len(out.Superseded),
		"merged":     result.MergedCount(),
		"rejected":   len(result.Rejected),
	}).Info("Processed batch")

	return nil
}

// changedEvents fingerprints every canonical event and keeps those not yet published
// with the same content
func (p *Processor) changedEvents(canonical []models.CanonicalEvent) ([]models.CanonicalEvent, map[string]string, error) {
	changed := make([]models.CanonicalEvent, 0, len(canonical))
	fingerprints := make(map[string]string, len(canonical))
	for _, event := range canonical {
		fp, err := fingerprint.GenerateFromStruct(event, fingerprint.VolatileFields...)
		if err != nil {
			return nil, nil, err
		}
		event.Fingerprint = fp
		fingerprints[event.ID] = fp
		if p.tracker.Changed(event.ID, fp) {
			changed = append(changed, event)
		}
	}
	return changed, fingerprints, nil
}

// latestRecords returns the decoded records of a batch, keeping only the last copy of
// any record that was scraped more than once within the batch
func latestRecords(batch []*envelope) []models.EventRecord {
	position := make(map[string]int, len(batch))
	records := make([]models.EventRecord, 0, len(batch))
	for _, env := range batch {
		if env.record == nil {
			continue
		}
		key := env.record.Key()
		if i, ok := position[key]; ok {
			records[i] = *env.record
			continue
		}
		position[key] = len(records)
		records = append(records, *env.record)
	}
	return records
}

// matchedPairs pairs every accepted match with the canonical event it was folded into,
// keeping only matches of events published in this batch
func matchedPairs(result *resolution.Result, published []models.CanonicalEvent) []events.MatchedPair {
	if len(result.Accepted) == 0 || len(published) == 0 {
		return nil
	}

	isPublished := make(map[string]bool, len(published))
	for _, event := range published {
		isPublished[event.ID] = true
	}
	canonicalOf := make(map[int]string)
	for g, group := range result.Groups {
		for _, idx := range group.Members {
			canonicalOf[idx] = result.Canonical[g].ID
		}
	}

	var pairs []events.MatchedPair
	for _, match := range result.Accepted {
		id := canonicalOf[match.Index1]
		if isPublished[id] {
			pairs = append(pairs, events.MatchedPair{Match: match, CanonicalID: id})
		}
	}
	return pairs
}
