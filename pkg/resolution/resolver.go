// Package resolution turns pairwise duplicate matches into canonical events
package resolution

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Group is one set of records resolved to a single canonical event
type Group struct {
	Primary int   // Index of the record that led the merge
	Members []int // All member indexes in merge order, primary first
}

// Result holds everything a resolution run produced
type Result struct {
	Canonical []models.CanonicalEvent // One per group, ordered by the group's first input index
	Groups    []Group                 // Parallel to Canonical
	Matches   []models.DuplicateMatch // Every pair the finder reported
	Accepted  []models.DuplicateMatch // Pairs applied by clustering
	Rejected  []RejectedMatch         // Pairs clustering declined
}

// MergedCount returns how many input records were folded into another record's group
func (r *Result) MergedCount() int {
	count := 0
	for _, g := range r.Groups {
		count += len(g.Members) - 1
	}
	return count
}

// Resolver runs the finder, clusters its matches and merges each group
type Resolver struct {
	logger    ectologger.Logger
	finder    *matching.Finder
	clusterer *Clusterer
	selector  *PrimarySelector
	merger    *merging.Engine
	window    time.Duration
}

// NewResolver creates a new Resolver
func NewResolver(logger ectologger.Logger, matchCfg matching.Config, mergeCfg merging.Config) *Resolver {
	return &Resolver{
		logger:    logger,
		finder:    matching.NewFinder(logger, matchCfg),
		clusterer: NewClusterer(),
		selector:  NewPrimarySelector(mergeCfg),
		merger:    merging.NewEngine(mergeCfg),
		window:    matchWindow(matchCfg),
	}
}

// matchWindow is negative when title and venue alone can reach the threshold
func matchWindow(cfg matching.Config) time.Duration {
	total := cfg.TitleWeight + cfg.DateWeight + cfg.VenueWeight
	if total > 0 && (cfg.TitleWeight+cfg.VenueWeight)/total >= cfg.OverallThreshold {
		return -1
	}
	return cfg.FarWindow
}

// MatchWindow returns the largest gap between two runs that can still score on the date
// axis. Records further apart than this never match. A negative window means the date
// axis alone never rules a pair out.
func (r *Resolver) MatchWindow() time.Duration {
	return r.window
}

// Resolve deduplicates a batch of records. A cancelled context aborts the run with no
// partial result, since half-scanned batches would produce unstable groups.
func (r *Resolver) Resolve(ctx context.Context, events []models.EventRecord) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.Resolve")
	defer span.End()

	log := r.logger.WithContext(ctx).WithField("event_count", len(events))

	matches, err := r.finder.FindDuplicates(ctx, events)
	if err != nil {
		return nil, err
	}

	clustering := r.clusterer.Cluster(events, matches)
	for _, rejected := range clustering.Rejected {
		log.WithFields(map[string]any{
			"event1_id":  rejected.Match.Event1ID,
			"event2_id":  rejected.Match.Event2ID,
			"confidence": rejected.Match.Confidence,
			"reason":     rejected.Reason,
		}).Debug("Duplicate match not applied")
	}

	result := &Result{
		Canonical: make([]models.CanonicalEvent, 0, len(clustering.Groups)),
		Groups:    make([]Group, 0, len(clustering.Groups)),
		Matches:   matches,
		Accepted:  clustering.Accepted,
		Rejected:  clustering.Rejected,
	}

	for _, members := range clustering.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ordered := r.selector.Order(events, members)
		rest := make([]models.EventRecord, 0, len(ordered)-1)
		for _, idx := range ordered[1:] {
			rest = append(rest, events[idx])
		}

		result.Canonical = append(result.Canonical, r.merger.MergeGroup(events[ordered[0]], rest))
		result.Groups = append(result.Groups, Group{Primary: ordered[0], Members: ordered})
	}

	log.WithFields(map[string]any{
		"match_count":     len(matches),
		"rejected_count":  len(clustering.Rejected),
		"canonical_count": len(result.Canonical),
	}).Info("Resolved event batch")

	return result, nil
}
