package merging

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DefaultNoDescription is the description scrapers emit when a listing has none
const DefaultNoDescription = "No description available"

// Config contains configuration for the merge policy
type Config struct {
	// SourcePriority ranks sources, most authoritative first. Unlisted sources rank last.
	SourcePriority []models.Source
	// NoDescriptionSentinel is treated as an absent description regardless of length
	NoDescriptionSentinel string
	// AddressPlaceholders are venue addresses that lose to any concrete address
	AddressPlaceholders []string
	// PriceDetailsSeparator joins distinct price detail strings
	PriceDetailsSeparator string
}

// DefaultConfig returns default merge configuration
func DefaultConfig() Config {
	return Config{
		SourcePriority: []models.Source{
			models.SourceTheatreOperator,
			models.SourceTicketingAPI,
			models.SourceExperiencesMarketplace,
			models.SourceMunicipalListings,
		},
		NoDescriptionSentinel: DefaultNoDescription,
		AddressPlaceholders:   []string{"TBA", "TBC", "To be announced", "To be confirmed"},
		PriceDetailsSeparator: " | ",
	}
}

// Validate checks the configuration for unknown or repeated sources
func (c Config) Validate() error {
	seen := make(map[models.Source]bool, len(c.SourcePriority))
	for _, s := range c.SourcePriority {
		if !s.IsValid() {
			return fmt.Errorf("unknown source %q in source priority", s)
		}
		if seen[s] {
			return fmt.Errorf("source %q listed twice in source priority", s)
		}
		seen[s] = true
	}
	if c.PriceDetailsSeparator == "" {
		return fmt.Errorf("price details separator must not be empty")
	}
	return nil
}

// Rank returns the position of a source in the priority list; unlisted sources rank last
func (c Config) Rank(source models.Source) int {
	for i, s := range c.SourcePriority {
		if s == source {
			return i
		}
	}
	return len(c.SourcePriority)
}
