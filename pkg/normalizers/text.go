package normalizers

import (
	"sort"
	"strings"
)

// WordLists holds the vocabularies that drive title and venue normalization
type WordLists struct {
	StopWords      []string          // Articles, prepositions and conjunctions dropped from titles
	MarketingTerms []string          // Generic promotional words dropped from titles ("live", "presents")
	GeoSuffixes    []string          // City/state names; may be multi-word ("new south wales")
	VenueTypes     []string          // Venue nouns that are never stripped ("theatre", "hall")
	Spellings      map[string]string // Venue spelling variants mapped to one form ("theater" -> "theatre")
}

// DefaultWordLists returns the vocabularies tuned for Australian event listings
func DefaultWordLists() WordLists {
	return WordLists{
		StopWords: []string{
			"a", "an", "the", "and", "of", "in", "on", "at", "to", "for", "with", "by", "from",
		},
		MarketingTerms: []string{
			"live", "presents", "presented", "official", "tickets",
		},
		GeoSuffixes: []string{
			"melbourne", "sydney", "brisbane", "adelaide", "perth", "hobart", "canberra", "darwin",
			"geelong", "ballarat", "bendigo", "cbd",
			"vic", "victoria", "nsw", "new south wales", "qld", "queensland",
			"sa", "south australia", "wa", "western australia", "tas", "tasmania",
			"act", "nt", "northern territory", "australia", "au",
		},
		VenueTypes: []string{
			"theatre", "hall", "centre", "cinema", "arena", "stadium", "club", "hotel", "pub", "bar",
			"gallery", "museum", "park", "gardens", "church", "cathedral", "auditorium", "studio",
			"studios", "room", "lounge", "bowl", "forum", "playhouse", "house", "library", "market",
			"pavilion", "warehouse", "venue", "ground", "oval", "festival", "chapel", "basilica",
		},
		Spellings: map[string]string{
			"theater":  "theatre",
			"theaters": "theatres",
			"center":   "centre",
			"centers":  "centres",
			"ctr":      "centre",
			"thtr":     "theatre",
		},
	}
}

// Text normalizes titles and venue names using a fixed set of word lists.
// A Text is read-only after construction and safe for concurrent use.
type Text struct {
	stopWords  map[string]bool
	marketing  map[string]bool
	venueTypes map[string]bool
	spellings  map[string]string
	geo        [][]string // Tokenized geographic phrases, longest first
}

// NewText builds a normalizer from word lists
func NewText(lists WordLists) *Text {
	t := &Text{
		stopWords:  toSet(lists.StopWords),
		marketing:  toSet(lists.MarketingTerms),
		venueTypes: toSet(lists.VenueTypes),
		spellings:  make(map[string]string, len(lists.Spellings)),
	}
	for from, to := range lists.Spellings {
		t.spellings[strings.ToLower(from)] = strings.ToLower(to)
	}
	for _, phrase := range lists.GeoSuffixes {
		tokens := Tokenize(phrase)
		if len(tokens) > 0 {
			t.geo = append(t.geo, tokens)
		}
	}
	// Longest phrase wins so "south australia" is stripped before "australia"
	sort.SliceStable(t.geo, func(i, j int) bool {
		return len(t.geo[i]) > len(t.geo[j])
	})
	return t
}

// Title normalizes an event title for comparison. Stop words, marketing terms and
// "in <city>" phrases are dropped. An all-stop-word title normalizes to "".
func (t *Text) Title(title string) string {
	tokens := Tokenize(title)
	kept := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "in" {
			if n := t.geoPrefixLen(tokens[i+1:]); n > 0 {
				i += n
				continue
			}
		}
		if t.stopWords[tok] || t.marketing[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Venue normalizes a venue name for comparison. Trailing geographic tokens are stripped
// repeatedly. Venue-type nouns are never removed, so different kinds of venue in the
// same city keep distinct forms.
func (t *Text) Venue(venue string) string {
	tokens := Tokenize(venue)
	for i, tok := range tokens {
		if canonical, ok := t.spellings[tok]; ok {
			tokens[i] = canonical
		}
	}
	for len(tokens) > 1 && tokens[0] == "the" {
		tokens = tokens[1:]
	}

	for {
		n := t.geoSuffixLen(tokens)
		if n == 0 || n >= len(tokens) {
			break
		}
		tokens = tokens[:len(tokens)-n]
	}
	return strings.Join(tokens, " ")
}

// TokenSet splits a normalized string into its distinct tokens
func TokenSet(normalized string) []string {
	return distinct(strings.Fields(normalized))
}

// geoPrefixLen returns the length of the geographic phrase that starts tokens, or 0
func (t *Text) geoPrefixLen(tokens []string) int {
	for _, phrase := range t.geo {
		if len(phrase) > len(tokens) {
			continue
		}
		if equalTokens(tokens[:len(phrase)], phrase) {
			return len(phrase)
		}
	}
	return 0
}

// geoSuffixLen returns the length of the strippable geographic phrase that ends tokens, or 0
func (t *Text) geoSuffixLen(tokens []string) int {
	for _, phrase := range t.geo {
		if len(phrase) > len(tokens) {
			continue
		}
		tail := tokens[len(tokens)-len(phrase):]
		if !equalTokens(tail, phrase) {
			continue
		}
		if t.hasVenueType(tail) {
			continue
		}
		return len(phrase)
	}
	return 0
}

func (t *Text) hasVenueType(tokens []string) bool {
	for _, tok := range tokens {
		if t.venueTypes[tok] {
			return true
		}
	}
	return false
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		for _, tok := range Tokenize(w) {
			set[tok] = true
		}
	}
	return set
}

func distinct(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
