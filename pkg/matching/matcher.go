package matching

import (
	"fmt"
	"math"

	"github.com/Ramsey-B/fern/pkg/models"
)

// MatchScore is the weighted confidence that two records describe the same event
type MatchScore struct {
	Score     float64
	Title     float64
	Date      float64
	Venue     float64
	Breakdown string // "t:95 d:100 v:80"
}

// Reason renders the score for audit trails, e.g. "89% (t:95 d:100 v:80)"
func (m MatchScore) Reason() string {
	return fmt.Sprintf("%d%% (%s)", percent(m.Score), m.Breakdown)
}

// Matcher combines the per-axis scores into one confidence value
type Matcher struct {
	scorer      *Scorer
	titleWeight float64
	dateWeight  float64
	venueWeight float64
	totalWeight float64
}

// NewMatcher creates a new Matcher
func NewMatcher(cfg Config) *Matcher {
	return NewMatcherWithScorer(cfg, NewScorer(cfg))
}

// NewMatcherWithScorer creates a Matcher that shares an existing Scorer
func NewMatcherWithScorer(cfg Config, scorer *Scorer) *Matcher {
	return &Matcher{
		scorer:      scorer,
		titleWeight: cfg.TitleWeight,
		dateWeight:  cfg.DateWeight,
		venueWeight: cfg.VenueWeight,
		totalWeight: cfg.TitleWeight + cfg.DateWeight + cfg.VenueWeight,
	}
}

// Scorer returns the underlying axis scorer
func (m *Matcher) Scorer() *Scorer {
	return m.scorer
}

// Score compares two records on title, date and venue
func (m *Matcher) Score(e1, e2 *models.EventRecord) MatchScore {
	return m.combine(
		m.scorer.TitleSimilarity(e1.Title, e2.Title),
		m.scorer.DateOverlap(e1, e2),
		m.scorer.VenueSimilarity(e1.Venue.Name, e2.Venue.Name),
	)
}

// combine weights already computed axis scores and renders the breakdown
func (m *Matcher) combine(title, date, venue float64) MatchScore {
	return MatchScore{
		Score:     m.weighted(title, date, venue),
		Title:     title,
		Date:      date,
		Venue:     venue,
		Breakdown: fmt.Sprintf("t:%d d:%d v:%d", percent(title), percent(date), percent(venue)),
	}
}

// weighted returns titleWeight*title + dateWeight*date + venueWeight*venue, divided by the
// weight total so configurations that do not sum to 1 still score within [0, 1]
func (m *Matcher) weighted(title, date, venue float64) float64 {
	if m.totalWeight <= 0 {
		return 0.0
	}
	sum := m.titleWeight*title + m.dateWeight*date + m.venueWeight*venue
	if m.totalWeight == 1 {
		return sum
	}
	return sum / m.totalWeight
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}
