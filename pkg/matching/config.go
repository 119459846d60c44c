package matching

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Config contains configuration for scoring and duplicate detection.
// It is read-only once handed to a constructor.
type Config struct {
	TitleWeight        float64       // Weight of the title axis (default: 0.5)
	DateWeight         float64       // Weight of the date axis (default: 0.3)
	VenueWeight        float64       // Weight of the venue axis (default: 0.2)
	OverallThreshold   float64       // Minimum confidence to report a duplicate (default: 0.75)
	NearWindow         time.Duration // Gap up to which dates score 0.85 (default: 21 days)
	FarWindow          time.Duration // Gap up to which dates score 0.5 (default: 28 days)
	TokenFuzzThreshold float64       // Jaro-Winkler similarity at which two tokens count as shared (default: 0.92)
	Workers            int           // Goroutines used by the pair scan (default: GOMAXPROCS)
	WordLists          normalizers.WordLists
}

// DefaultConfig returns default matching configuration
func DefaultConfig() Config {
	return Config{
		TitleWeight:        0.5,
		DateWeight:         0.3,
		VenueWeight:        0.2,
		OverallThreshold:   0.75,
		NearWindow:         21 * 24 * time.Hour,
		FarWindow:          28 * 24 * time.Hour,
		TokenFuzzThreshold: 0.92,
		Workers:            runtime.GOMAXPROCS(0),
		WordLists:          normalizers.DefaultWordLists(),
	}
}

// Validate checks the configuration for values the scorer cannot work with
func (c Config) Validate() error {
	if c.TitleWeight < 0 || c.DateWeight < 0 || c.VenueWeight < 0 {
		return fmt.Errorf("axis weights must not be negative")
	}
	if c.TitleWeight+c.DateWeight+c.VenueWeight <= 0 {
		return fmt.Errorf("at least one axis weight must be positive")
	}
	if c.OverallThreshold < 0 || c.OverallThreshold > 1 {
		return fmt.Errorf("overall threshold must be within [0, 1], got %v", c.OverallThreshold)
	}
	if c.NearWindow < 0 || c.FarWindow < c.NearWindow {
		return fmt.Errorf("date windows must satisfy 0 <= near (%s) <= far (%s)", c.NearWindow, c.FarWindow)
	}
	if c.TokenFuzzThreshold <= 0 || c.TokenFuzzThreshold > 1 {
		return fmt.Errorf("token fuzz threshold must be within (0, 1], got %v", c.TokenFuzzThreshold)
	}
	return nil
}
