package resolution

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
)

// PrimarySelector orders the members of a group for merging
type PrimarySelector struct {
	config merging.Config
}

// NewPrimarySelector creates a selector over a source priority list
func NewPrimarySelector(cfg merging.Config) *PrimarySelector {
	return &PrimarySelector{config: cfg}
}

// Order returns members sorted for merging: highest source priority first, then the most
// recently updated record, then the lower input index. The first element is the primary.
func (p *PrimarySelector) Order(events []models.EventRecord, members []int) []int {
	ordered := append([]int(nil), members...)
	sort.SliceStable(ordered, func(a, b int) bool {
		ea, eb := &events[ordered[a]], &events[ordered[b]]
		if ra, rb := p.config.Rank(ea.Source), p.config.Rank(eb.Source); ra != rb {
			return ra < rb
		}
		if !ea.LastUpdated.Equal(eb.LastUpdated) {
			return ea.LastUpdated.After(eb.LastUpdated)
		}
		return ordered[a] < ordered[b]
	})
	return ordered
}

// Primary returns the index of the record that should lead the merge
func (p *PrimarySelector) Primary(events []models.EventRecord, members []int) int {
	return p.Order(events, members)[0]
}
