package merging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 19, 30, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func record(source models.Source, id string) models.EventRecord {
	return models.EventRecord{
		Title:       "Hamilton",
		Description: "The musical",
		Category:    "theatre",
		StartDate:   day(5),
		Venue:       models.Venue{Name: "Her Majesty's Theatre", Address: "219 Exhibition St"},
		BookingURL:  "https://example.com/" + id,
		Source:      source,
		SourceID:    id,
		ScrapedAt:   day(1),
		LastUpdated: day(2),
	}
}

func TestMergeEvents_Subcategories(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("disjoint sets are unioned", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Category = "music"
		primary.Subcategories = []string{"rock", "indie"}
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Category = "music"
		secondary.Subcategories = []string{"alternative"}

		merged := engine.MergeEvents(primary, secondary)
		assert.ElementsMatch(t, []string{"rock", "indie", "alternative"}, merged.Subcategories)
	})

	t.Run("differing secondary category is demoted to a tag", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Category = "theatre"
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Category = "family"

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, "theatre", merged.Category)
		assert.Equal(t, []string{"family"}, merged.Subcategories)
	})

	t.Run("category is never repeated as a tag", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Category = "theatre"
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Category = "Theatre"
		secondary.Subcategories = []string{"theatre", "musical"}

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, []string{"musical"}, merged.Subcategories)
	})

	t.Run("primary tags are kept as they are", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Category = "music"
		primary.Subcategories = []string{"music", "rock"}
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Category = "music"
		secondary.Subcategories = []string{"Music", "jazz"}

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, []string{"jazz", "music", "rock"}, merged.Subcategories)
		assert.Equal(t, []string{"music", "rock"}, primary.Subcategories)
	})

	t.Run("blank primary category adopts the secondary", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Category = ""
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Category = "comedy"

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, "comedy", merged.Category)
		assert.Empty(t, merged.Subcategories)
	})
}

func TestMergeEvents_Dates(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("run windows are unioned", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.StartDate = day(5)
		primary.EndDate = ptr(day(15))
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.StartDate = day(1)
		secondary.EndDate = ptr(day(20))

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, day(1), merged.StartDate)
		require.NotNil(t, merged.EndDate)
		assert.Equal(t, day(20), *merged.EndDate)
	})

	t.Run("missing end falls back to start", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.StartDate = day(5)
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.StartDate = day(8)

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, day(5), merged.StartDate)
		require.NotNil(t, merged.EndDate)
		assert.Equal(t, day(8), *merged.EndDate)
	})

	t.Run("same single day keeps no end", func(t *testing.T) {
		merged := engine.MergeEvents(record(models.SourceTicketingAPI, "1"), record(models.SourceMunicipalListings, "2"))
		assert.Nil(t, merged.EndDate)
	})

	t.Run("timestamps take the widest span", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.ScrapedAt = day(0)
		secondary.LastUpdated = day(3)

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, day(0), merged.ScrapedAt)
		assert.Equal(t, day(3), merged.LastUpdated)
	})
}

func TestMergeEvents_Prices(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("range is widened", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.PriceMin, primary.PriceMax = ptr(50.0), ptr(150.0)
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.PriceMin, secondary.PriceMax = ptr(45.0), ptr(160.0)

		merged := engine.MergeEvents(primary, secondary)
		require.NotNil(t, merged.PriceMin)
		require.NotNil(t, merged.PriceMax)
		assert.Equal(t, 45.0, *merged.PriceMin)
		assert.Equal(t, 160.0, *merged.PriceMax)
	})

	t.Run("one-sided prices are kept", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.PriceMin = ptr(30.0)

		merged := engine.MergeEvents(primary, secondary)
		require.NotNil(t, merged.PriceMin)
		assert.Equal(t, 30.0, *merged.PriceMin)
		assert.Nil(t, merged.PriceMax)
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.PriceMin = ptr(50.0)
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.PriceMin = ptr(45.0)

		merged := engine.MergeEvents(primary, secondary)
		*merged.PriceMin = 1
		assert.Equal(t, 50.0, *primary.PriceMin)
		assert.Equal(t, 45.0, *secondary.PriceMin)
	})

	t.Run("distinct details are joined", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.PriceDetails = ptr("Adult $150")
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.PriceDetails = ptr("Concession $45")

		merged := engine.MergeEvents(primary, secondary)
		require.NotNil(t, merged.PriceDetails)
		assert.Equal(t, "Adult $150 | Concession $45", *merged.PriceDetails)
	})

	t.Run("repeated details are not duplicated", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.PriceDetails = ptr("Adult $150")
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.PriceDetails = ptr("adult $150")

		merged := engine.MergeEvents(primary, secondary)
		require.NotNil(t, merged.PriceDetails)
		assert.Equal(t, "Adult $150", *merged.PriceDetails)
	})

	t.Run("free if either is free", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.IsFree = true

		assert.True(t, engine.MergeEvents(primary, secondary).IsFree)
		assert.True(t, engine.MergeEvents(secondary, primary).IsFree)
	})
}

func TestMergeEvents_Text(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	tests := []struct {
		name      string
		primary   string
		secondary string
		want      string
	}{
		{"longer secondary wins", "Short", "A much longer description", "A much longer description"},
		{"longer primary wins", "A much longer description", "Short", "A much longer description"},
		{"sentinel loses to anything", "No description available", "Short", "Short"},
		{"text containing the sentinel is a description", "Short", "No description available, really long", "No description available, really long"},
		{"blank primary", "", "Short", "Short"},
		{"both sentinel", DefaultNoDescription, DefaultNoDescription, DefaultNoDescription},
		{"ties keep primary", "abc", "xyz", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := record(models.SourceTicketingAPI, "1")
			primary.Description = tt.primary
			secondary := record(models.SourceMunicipalListings, "2")
			secondary.Description = tt.secondary

			assert.Equal(t, tt.want, engine.MergeEvents(primary, secondary).Description)
		})
	}

	t.Run("title always from primary", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Title = "Hamilton: The Musical (Melbourne)"

		assert.Equal(t, "Hamilton", engine.MergeEvents(primary, secondary).Title)
	})
}

func TestMergeEvents_Venue(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	t.Run("concrete address beats placeholder", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Venue.Address = "TBA"
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Venue.Address = "219 Exhibition St"

		assert.Equal(t, "219 Exhibition St", engine.MergeEvents(primary, secondary).Venue.Address)
	})

	t.Run("placeholder is matched case-insensitively", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Venue.Address = " to be announced "
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Venue.Address = "1 Main St"

		assert.Equal(t, "1 Main St", engine.MergeEvents(primary, secondary).Venue.Address)
	})

	t.Run("placeholder kept when nothing better", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Venue.Address = "TBC"
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Venue.Address = ""

		assert.Equal(t, "TBC", engine.MergeEvents(primary, secondary).Venue.Address)
	})

	t.Run("suburb and accessibility", func(t *testing.T) {
		primary := record(models.SourceTicketingAPI, "1")
		primary.Accessibility = []string{"wheelchair"}
		secondary := record(models.SourceMunicipalListings, "2")
		secondary.Venue.Suburb = "Melbourne"
		secondary.Accessibility = []string{"hearing loop", "Wheelchair"}

		merged := engine.MergeEvents(primary, secondary)
		assert.Equal(t, "Melbourne", merged.Venue.Suburb)
		assert.Equal(t, []string{"hearing loop", "wheelchair"}, merged.Accessibility)
	})
}

func TestMergeEvents_OptionalScalars(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	primary := record(models.SourceTicketingAPI, "1")
	primary.ImageURL = ptr("https://img/1.jpg")
	primary.Duration = ptr("  ")
	secondary := record(models.SourceMunicipalListings, "2")
	secondary.ImageURL = ptr("https://img/2.jpg")
	secondary.VideoURL = ptr("https://video/2")
	secondary.AgeRestriction = ptr("15+")
	secondary.Duration = ptr("2h 45m")
	primary.BookingURL = ""

	merged := engine.MergeEvents(primary, secondary)
	assert.Equal(t, "https://img/1.jpg", *merged.ImageURL)
	assert.Equal(t, "https://video/2", *merged.VideoURL)
	assert.Equal(t, "15+", *merged.AgeRestriction)
	assert.Equal(t, "2h 45m", *merged.Duration)
	assert.Equal(t, "https://example.com/2", merged.BookingURL)
}

func TestMergeGroup(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	a := record(models.SourceTheatreOperator, "a")
	b := record(models.SourceTicketingAPI, "b")
	c := record(models.SourceMunicipalListings, "c")

	t.Run("members are listed primary first", func(t *testing.T) {
		merged := engine.MergeGroup(a, []models.EventRecord{b, c})
		assert.Equal(t, []string{a.Key(), b.Key(), c.Key()}, merged.MergedFrom)
		assert.Equal(t, a.Source, merged.Source)
		assert.Equal(t, a.SourceID, merged.SourceID)
	})

	t.Run("id does not depend on fold order", func(t *testing.T) {
		first := engine.MergeGroup(a, []models.EventRecord{b, c})
		second := engine.MergeGroup(a, []models.EventRecord{c, b})
		assert.Equal(t, first.ID, second.ID)
		assert.NotEqual(t, models.NewCanonicalEvent(a).ID, first.ID)
	})
}

func TestConfig(t *testing.T) {
	t.Run("default is valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("unknown source", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SourcePriority = append(cfg.SourcePriority, "box_office")
		assert.Error(t, cfg.Validate())
	})

	t.Run("duplicate source", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SourcePriority = []models.Source{models.SourceTicketingAPI, models.SourceTicketingAPI}
		assert.Error(t, cfg.Validate())
	})

	t.Run("rank", func(t *testing.T) {
		cfg := Config{SourcePriority: []models.Source{models.SourceMunicipalListings, models.SourceTicketingAPI}}
		assert.Equal(t, 0, cfg.Rank(models.SourceMunicipalListings))
		assert.Equal(t, 1, cfg.Rank(models.SourceTicketingAPI))
		assert.Equal(t, 2, cfg.Rank(models.SourceTheatreOperator))
	})
}
