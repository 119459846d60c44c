package matching

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Finder scans a batch of records for cross-source duplicates
type Finder struct {
	logger  ectologger.Logger
	matcher *Matcher
	config  Config
}

// NewFinder creates a new duplicate finder
func NewFinder(logger ectologger.Logger, cfg Config) *Finder {
	return NewFinderWithMatcher(logger, cfg, NewMatcher(cfg))
}

// NewFinderWithMatcher creates a duplicate finder around an existing Matcher
func NewFinderWithMatcher(logger ectologger.Logger, cfg Config, matcher *Matcher) *Finder {
	return &Finder{
		logger:  logger,
		matcher: matcher,
		config:  cfg,
	}
}

// Matcher returns the scorer combination used by the finder
func (f *Finder) Matcher() *Matcher {
	return f.matcher
}

// prepared holds the per-record values computed once before the pair scan
type prepared struct {
	source      models.Source
	key         string
	malformed   bool
	title       string
	titleTokens []string
	venue       string
	venueTokens []string
	start       time.Time
	end         time.Time
}

// FindDuplicates compares every pair of records from different sources and returns the
// pairs scoring at or above the threshold, ordered by (i, j). Matches are pairwise: no
// transitive pairs are inferred or suppressed. Malformed records are skipped.
//
// On cancellation the matches of fully scanned rows are returned with the context error.
func (f *Finder) FindDuplicates(ctx context.Context, events []models.EventRecord) ([]models.DuplicateMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Finder.FindDuplicates")
	defer span.End()

	log := f.logger.WithContext(ctx).WithFields(map[string]any{
		"event_count": len(events),
	})

	items := f.prepare(events)
	rows := make([][]models.DuplicateMatch, len(items))
	done := make([]bool, len(items))

	workers := min(max(f.config.Workers, 1), max(len(items), 1))

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				rows[i] = f.scanRow(items, i)
				done[i] = true
			}
		}()
	}

	var err error
dispatch:
	for i := range items {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	// Rows are joined in index order so output is identical for any worker count
	matches := make([]models.DuplicateMatch, 0)
	for i, row := range rows {
		if done[i] {
			matches = append(matches, row...)
		}
	}

	if err != nil {
		log.WithError(err).WithFields(map[string]any{"match_count": len(matches)}).Warn("Duplicate scan cancelled")
		return matches, err
	}

	log.WithFields(map[string]any{"match_count": len(matches)}).Debug("Duplicate scan complete")
	return matches, nil
}

// prepare normalizes every record once so the pair scan only compares tokens
func (f *Finder) prepare(events []models.EventRecord) []prepared {
	text := f.matcher.scorer.Text()
	items := make([]prepared, len(events))
	for i := range events {
		e := &events[i]
		p := prepared{
			source:    e.Source,
			key:       e.Key(),
			malformed: e.IsMalformed(),
			start:     e.StartDate,
			end:       e.End(),
		}
		if !p.malformed {
			p.title = text.Title(e.Title)
			p.titleTokens = normalizers.TokenSet(p.title)
			p.venue = text.Venue(e.Venue.Name)
			p.venueTokens = normalizers.TokenSet(p.venue)
		}
		items[i] = p
	}
	return items
}

// scanRow compares record i against every record after it
func (f *Finder) scanRow(items []prepared, i int) []models.DuplicateMatch {
	a := &items[i]
	if a.malformed {
		return nil
	}

	scorer := f.matcher.scorer
	var out []models.DuplicateMatch
	for j := i + 1; j < len(items); j++ {
		b := &items[j]

		// Cheap rejects first: same source, malformed, then dates too far apart for
		// perfect title and venue scores to reach the threshold
		if a.source == b.source || b.malformed {
			continue
		}
		date := scorer.dateTier(a.start, a.end, b.start, b.end)
		if f.matcher.weighted(ExactScore, date, ExactScore) < f.config.OverallThreshold {
			continue
		}

		title := scorer.similarity(a.title, a.titleTokens, b.title, b.titleTokens)
		venue := scorer.similarity(a.venue, a.venueTokens, b.venue, b.venueTokens)
		if f.matcher.weighted(title, date, venue) < f.config.OverallThreshold {
			continue
		}

		score := f.matcher.combine(title, date, venue)
		out = append(out, models.DuplicateMatch{
			Event1ID:    a.key,
			Event2ID:    b.key,
			Index1:      i,
			Index2:      j,
			Confidence:  score.Score,
			Reason:      score.Reason(),
			ShouldMerge: true,
		})
	}
	return out
}
