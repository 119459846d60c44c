package normalizers

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestText_Title(t *testing.T) {
	text := NewText(DefaultWordLists())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase and punctuation", "Hamilton: The Musical!", "hamilton musical"},
		{"accents folded", "Les Misérables", "les miserables"},
		{"marketing terms dropped", "Hamilton LIVE", "hamilton"},
		{"in city dropped", "Hamilton in Melbourne", "hamilton"},
		{"in multi-word region dropped", "Wicked in New South Wales", "wicked"},
		{"in without city is a stop word", "Singin' in the Rain", "singin rain"},
		{"city outside in pattern kept", "Sydney Dance Company", "sydney dance company"},
		{"all stop words", "The And Of", ""},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"digits kept", "Hamilton 2025", "hamilton 2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, text.Title(tt.input))
		})
	}
}

func TestText_Venue(t *testing.T) {
	text := NewText(DefaultWordLists())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"city suffix stripped", "Princess Theatre, Melbourne", "princess theatre"},
		{"stacked suffixes stripped", "Princess Theatre Melbourne VIC Australia", "princess theatre"},
		{"multi-word suffix stripped", "State Theatre, New South Wales", "state theatre"},
		{"american spelling", "Forum Theater", "forum theatre"},
		{"leading article dropped", "The Forum Theatre", "forum theatre"},
		{"centre abbreviation", "Arts Ctr Melbourne", "arts centre"},
		{"venue type kept", "Princess Cinema", "princess cinema"},
		{"name never stripped to empty", "Melbourne", "melbourne"},
		{"city inside name kept", "Melbourne Recital Centre", "melbourne recital centre"},
		{"only the article", "The", "the"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, text.Venue(tt.input))
		})
	}

	t.Run("different venue types stay distinct", func(t *testing.T) {
		assert.NotEqual(t, text.Venue("Princess Theatre"), text.Venue("Princess Cinema"))
	})
}

func TestText_CustomWordLists(t *testing.T) {
	text := NewText(WordLists{
		StopWords:      []string{"le", "la"},
		MarketingTerms: []string{"spectacle"},
		GeoSuffixes:    []string{"paris"},
		VenueTypes:     []string{"salle"},
	})

	assert.Equal(t, "fantome opera", text.Title("Le Fantôme La Opéra Spectacle in Paris"))
	assert.Equal(t, "salle pleyel", text.Venue("Salle Pleyel Paris"))
	assert.Equal(t, "theater", text.Venue("Theater"))
}

func TestTokenSet(t *testing.T) {
	assert.Equal(t, []string{"gala", "night"}, TokenSet("gala night gala"))
	assert.Empty(t, TokenSet(""))
}

var vocabulary = []string{
	"", "the", "in", "of", "and", "live", "presents",
	"hamilton", "wicked", "gala", "night", "jazz", "festival", "comedy",
	"melbourne", "sydney", "new", "south", "wales", "vic",
	"theatre", "theater", "center", "hall", "princess", "forum", "ctr",
	"Misérables", "Café", "Her", "Majesty's", "!", "-", ":",
}

// phrase builds a phrase from vocabulary words picked by index
func phrase(idx []int) string {
	words := make([]string, len(idx))
	for i, n := range idx {
		words[i] = vocabulary[n]
	}
	return strings.Join(words, " ")
}

func phraseGen() gopter.Gen {
	return gen.SliceOfN(6, gen.IntRange(0, len(vocabulary)-1)).Map(phrase)
}

func TestText_Idempotent(t *testing.T) {
	text := NewText(DefaultWordLists())

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("title normalization is idempotent", prop.ForAll(
		func(s string) bool {
			once := text.Title(s)
			return text.Title(once) == once
		},
		phraseGen(),
	))

	properties.Property("venue normalization is idempotent", prop.ForAll(
		func(s string) bool {
			once := text.Venue(s)
			return text.Venue(once) == once
		},
		phraseGen(),
	))

	properties.Property("title normalization is idempotent on arbitrary text", prop.ForAll(
		func(s string) bool {
			once := text.Title(s)
			return text.Title(once) == once
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
