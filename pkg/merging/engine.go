// Package merging folds duplicate event records into one canonical record
package merging

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Engine applies the field-level merge policy. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	config Config
	fields *FieldMerger
}

// NewEngine creates a new merge engine
func NewEngine(cfg Config) *Engine {
	return &Engine{
		config: cfg,
		fields: NewFieldMerger(cfg),
	}
}

// Config returns the merge configuration
func (e *Engine) Config() Config {
	return e.config
}

// MergeEvents folds secondary into primary. The title, category and identity come from
// primary; everything else follows the per-field rules so that no non-conflicting data is
// lost. Neither input is modified.
func (e *Engine) MergeEvents(primary, secondary models.EventRecord) models.CanonicalEvent {
	return e.Fold(models.NewCanonicalEvent(primary), secondary)
}

// MergeGroup folds each record of rest into primary in order
func (e *Engine) MergeGroup(primary models.EventRecord, rest []models.EventRecord) models.CanonicalEvent {
	canonical := models.NewCanonicalEvent(primary)
	for _, secondary := range rest {
		canonical = e.Fold(canonical, secondary)
	}
	return canonical
}

// Fold merges one more record into an existing canonical event
func (e *Engine) Fold(base models.CanonicalEvent, secondary models.EventRecord) models.CanonicalEvent {
	p := &base.EventRecord
	s := &secondary
	f := e.fields

	merged := p.Clone()
	merged.Description = f.Description(p.Description, s.Description)
	merged.Category = FirstNonEmpty(p.Category, s.Category)
	merged.Subcategories = f.Subcategories(merged.Category, p.Subcategories, s.Subcategories, s.Category)

	merged.StartDate = f.EarliestStart(p.StartDate, s.StartDate)
	merged.EndDate = f.LatestEnd(merged.StartDate, p.End(), s.End(), p.EndDate != nil || s.EndDate != nil)

	merged.PriceMin = f.LowerPrice(p.PriceMin, s.PriceMin)
	merged.PriceMax = f.HigherPrice(p.PriceMax, s.PriceMax)
	merged.PriceDetails = f.PriceDetails(p.PriceDetails, s.PriceDetails)
	merged.IsFree = p.IsFree || s.IsFree

	merged.Venue.Address = f.Address(p.Venue.Address, s.Venue.Address)
	merged.Venue.Suburb = FirstNonEmpty(p.Venue.Suburb, s.Venue.Suburb)
	merged.Accessibility = UnionStrings(append(append([]string{}, p.Accessibility...), s.Accessibility...))

	merged.BookingURL = FirstNonEmpty(p.BookingURL, s.BookingURL)
	merged.ImageURL = FirstNonEmptyPtr(p.ImageURL, s.ImageURL)
	merged.VideoURL = FirstNonEmptyPtr(p.VideoURL, s.VideoURL)
	merged.AgeRestriction = FirstNonEmptyPtr(p.AgeRestriction, s.AgeRestriction)
	merged.Duration = FirstNonEmptyPtr(p.Duration, s.Duration)

	merged.ScrapedAt = EarlierNonZero(p.ScrapedAt, s.ScrapedAt)
	merged.LastUpdated = LaterTime(p.LastUpdated, s.LastUpdated)

	members := make([]string, 0, len(base.MergedFrom)+1)
	members = append(members, base.MergedFrom...)
	members = append(members, s.Key())

	return models.CanonicalEvent{
		EventRecord: merged,
		ID:          groupID(members),
		MergedFrom:  members,
	}
}

// groupID derives the canonical ID from the member keys regardless of merge order
func groupID(members []string) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return models.CanonicalID(sorted)
}
