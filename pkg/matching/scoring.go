package matching

import (
	"math"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Similarity scores for the non-continuous branches
const (
	ExactScore     = 1.0
	ContainedScore = 0.95
)

// TokenOverlapCeiling caps the continuous branch so strings that are neither equal nor
// contained in one another never outscore containment
const TokenOverlapCeiling = 0.9

// Date tier scores
const (
	DateOverlapScore = 1.0
	DateNearScore    = 0.85
	DateFarScore     = 0.5
)

// Scorer provides the per-axis comparison algorithms
type Scorer struct {
	text          *normalizers.Text
	fuzzThreshold float64
	nearWindow    time.Duration
	farWindow     time.Duration
}

// NewScorer creates a new Scorer from a matching configuration
func NewScorer(cfg Config) *Scorer {
	return &Scorer{
		text:          normalizers.NewText(cfg.WordLists),
		fuzzThreshold: cfg.TokenFuzzThreshold,
		nearWindow:    cfg.NearWindow,
		farWindow:     cfg.FarWindow,
	}
}

// Text returns the normalizer used by the scorer
func (s *Scorer) Text() *normalizers.Text {
	return s.text
}

// TitleSimilarity compares two raw titles. Returns 1.0 when their normalized forms are
// equal (including both empty), 0.95 when one is contained word-for-word in the other,
// and the soft token overlap otherwise.
func (s *Scorer) TitleSimilarity(a, b string) float64 {
	return s.NormalizedSimilarity(s.text.Title(a), s.text.Title(b))
}

// VenueSimilarity compares two raw venue names using the same strategy as titles
func (s *Scorer) VenueSimilarity(a, b string) float64 {
	return s.NormalizedSimilarity(s.text.Venue(a), s.text.Venue(b))
}

// NormalizedSimilarity compares two already-normalized strings
func (s *Scorer) NormalizedSimilarity(a, b string) float64 {
	return s.similarity(a, nil, b, nil)
}

// similarity compares normalized strings whose token sets may already be known
func (s *Scorer) similarity(a string, aTokens []string, b string, bTokens []string) float64 {
	if a == b {
		return ExactScore
	}
	if a == "" || b == "" {
		return 0.0
	}
	if containsWords(a, b) || containsWords(b, a) {
		return ContainedScore
	}
	if aTokens == nil {
		aTokens = normalizers.TokenSet(a)
	}
	if bTokens == nil {
		bTokens = normalizers.TokenSet(b)
	}
	return math.Min(s.TokenSimilarity(aTokens, bTokens), TokenOverlapCeiling)
}

// TokenSimilarity is a soft Jaccard index over two sets of distinct tokens. Equal tokens
// count as fully shared; tokens whose Jaro-Winkler similarity reaches the fuzz threshold
// count by that similarity. Shared weights are taken from both sides and averaged so the
// result is symmetric.
func (s *Scorer) TokenSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return ExactScore
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	shared := (s.sharedWeight(a, b) + s.sharedWeight(b, a)) / 2
	union := float64(len(a)+len(b)) - shared
	if union <= 0 {
		return 0.0
	}
	return shared / union
}

// sharedWeight sums, for each token of a, its best counterpart in b
func (s *Scorer) sharedWeight(a, b []string) float64 {
	total := 0.0
	for _, ta := range a {
		best := 0.0
		for _, tb := range b {
			if ta == tb {
				best = 1.0
				break
			}
			if jw := s.JaroWinkler(ta, tb); jw >= s.fuzzThreshold && jw > best {
				best = jw
			}
		}
		total += best
	}
	return total
}

// DateOverlap scores how close two events' run windows are. Each event spans
// [start, end] (end falls back to start). Overlapping windows score 1.0, gaps within the
// near window 0.85, within the far window 0.5, and anything further 0.
func (s *Scorer) DateOverlap(e1, e2 *models.EventRecord) float64 {
	return s.dateTier(e1.StartDate, e1.End(), e2.StartDate, e2.End())
}

func (s *Scorer) dateTier(start1, end1, start2, end2 time.Time) float64 {
	gap := intervalGap(start1, end1, start2, end2)
	switch {
	case gap <= 0:
		return DateOverlapScore
	case gap <= s.nearWindow:
		return DateNearScore
	case gap <= s.farWindow:
		return DateFarScore
	default:
		return 0.0
	}
}

// intervalGap returns the distance between two closed intervals, or 0 when they overlap
func intervalGap(start1, end1, start2, end2 time.Time) time.Duration {
	if end1.Before(start1) {
		end1 = start1
	}
	if end2.Before(start2) {
		end2 = start2
	}
	switch {
	case end1.Before(start2):
		return start2.Sub(end1)
	case end2.Before(start1):
		return start1.Sub(end2)
	default:
		return 0
	}
}

// containsWords reports whether needle appears in haystack on word boundaries
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	jaro := jaro(ra, rb)

	// Winkler modification: boost for common prefix
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(ra) && i < len(rb) && i < maxPrefix; i++ {
		if ra[i] == rb[i] {
			prefixLen++
		} else {
			break
		}
	}

	// Winkler scaling factor is typically 0.1
	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	return jaro([]rune(a), []rune(b))
}

func jaro(a, b []rune) float64 {
	if string(a) == string(b) {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Maximum distance for character matching
	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	// Find matches
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}
