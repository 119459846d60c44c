package matching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func event(source models.Source, id, title, venue string, d int) models.EventRecord {
	return models.EventRecord{
		Title:     title,
		StartDate: at(d),
		Venue:     models.Venue{Name: venue},
		Source:    source,
		SourceID:  id,
	}
}

func TestMatcher_Score(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())

	t.Run("identical records", func(t *testing.T) {
		e := event(models.SourceTicketingAPI, "1", "Hamilton", "Her Majesty's Theatre", 0)
		score := matcher.Score(&e, &e)
		assert.Equal(t, 1.0, score.Score)
		assert.Equal(t, "t:100 d:100 v:100", score.Breakdown)
		assert.Equal(t, "100% (t:100 d:100 v:100)", score.Reason())
	})

	t.Run("weighted combination", func(t *testing.T) {
		e1 := event(models.SourceTicketingAPI, "1", "Hamilton", "Princess Theatre", 0)
		e2 := event(models.SourceMunicipalListings, "2", "Hamilton: The Musical", "Princess Theatre, Melbourne", 20)
		score := matcher.Score(&e1, &e2)
		assert.Equal(t, 0.95, score.Title)
		assert.Equal(t, 0.85, score.Date)
		assert.Equal(t, 1.0, score.Venue)
		assert.InDelta(t, 0.5*0.95+0.3*0.85+0.2*1.0, score.Score, 1e-9)
		assert.Equal(t, "93% (t:95 d:85 v:100)", score.Reason())
	})

	t.Run("weights that do not sum to one are normalized", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TitleWeight, cfg.DateWeight, cfg.VenueWeight = 5, 3, 2
		e := event(models.SourceTicketingAPI, "1", "Hamilton", "Princess Theatre", 0)
		assert.InDelta(t, 1.0, NewMatcher(cfg).Score(&e, &e).Score, 1e-9)
	})
}

func TestFinder_FindDuplicates(t *testing.T) {
	ctx := context.Background()
	finder := NewFinder(testLogger(), DefaultConfig())

	t.Run("cross-source duplicate", func(t *testing.T) {
		events := []models.EventRecord{
			event(models.SourceTicketingAPI, "tk-1", "Hamilton", "Her Majesty's Theatre", 0),
			event(models.SourceTheatreOperator, "op-9", "Hamilton: The Musical", "Her Majesty's Theatre, Melbourne", 0),
		}
		matches, err := finder.FindDuplicates(ctx, events)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "ticketing_api:tk-1", matches[0].Event1ID)
		assert.Equal(t, "theatre_operator:op-9", matches[0].Event2ID)
		assert.Equal(t, 0, matches[0].Index1)
		assert.Equal(t, 1, matches[0].Index2)
		assert.True(t, matches[0].ShouldMerge)
		assert.InDelta(t, 0.975, matches[0].Confidence, 1e-9)
		assert.Contains(t, matches[0].Reason, "(t:95 d:100 v:100)")
	})

	t.Run("same source is never matched", func(t *testing.T) {
		events := []models.EventRecord{
			event(models.SourceTicketingAPI, "1", "Hamilton", "Her Majesty's Theatre", 0),
			event(models.SourceTicketingAPI, "2", "Hamilton", "Her Majesty's Theatre", 0),
		}
		matches, err := finder.FindDuplicates(ctx, events)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("matches are not transitive", func(t *testing.T) {
		venue := "Arts Centre"
		events := []models.EventRecord{
			event(models.SourceTicketingAPI, "a", "Hamilton", venue, 0),
			event(models.SourceTheatreOperator, "b", "Hamilton Gala", venue, 0),
			event(models.SourceMunicipalListings, "c", "Gala", venue, 10),
		}
		matches, err := finder.FindDuplicates(ctx, events)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, [2]int{0, 1}, [2]int{matches[0].Index1, matches[0].Index2})
		assert.Equal(t, [2]int{1, 2}, [2]int{matches[1].Index1, matches[1].Index2})

		a, c := events[0], events[2]
		assert.Less(t, finder.Matcher().Score(&a, &c).Score, DefaultConfig().OverallThreshold)
	})

	t.Run("malformed records are skipped", func(t *testing.T) {
		events := []models.EventRecord{
			event(models.SourceTicketingAPI, "1", "Hamilton", "", 0),
			event(models.SourceTheatreOperator, "2", "Hamilton", "Her Majesty's Theatre", 0),
			event(models.SourceMunicipalListings, "3", "  ", "Her Majesty's Theatre", 0),
			event(models.SourceExperiencesMarketplace, "4", "Hamilton", "Her Majesty's Theatre", 0),
		}
		matches, err := finder.FindDuplicates(ctx, events)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, 1, matches[0].Index1)
		assert.Equal(t, 3, matches[0].Index2)
	})

	t.Run("far apart dates are rejected", func(t *testing.T) {
		events := []models.EventRecord{
			event(models.SourceTicketingAPI, "1", "Hamilton", "Her Majesty's Theatre", 0),
			event(models.SourceTheatreOperator, "2", "Hamilton", "Her Majesty's Theatre", 60),
		}
		matches, err := finder.FindDuplicates(ctx, events)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("empty input", func(t *testing.T) {
		matches, err := finder.FindDuplicates(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		events := []models.EventRecord{
			event(models.SourceTicketingAPI, "1", "Hamilton LIVE", "The Forum Theater", 0),
			event(models.SourceTheatreOperator, "2", "Hamilton", "Forum Theatre", 0),
		}
		_, err := finder.FindDuplicates(ctx, events)
		require.NoError(t, err)
		assert.Equal(t, "Hamilton LIVE", events[0].Title)
		assert.Equal(t, "The Forum Theater", events[0].Venue.Name)
	})
}

func TestFinder_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finder := NewFinder(testLogger(), DefaultConfig())
	matches, err := finder.FindDuplicates(ctx, syntheticEvents(100))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, matches)
}

func TestFinder_DeterministicAcrossWorkers(t *testing.T) {
	events := syntheticEvents(300)

	cfg := DefaultConfig()
	cfg.Workers = 1
	serial, err := NewFinder(testLogger(), cfg).FindDuplicates(context.Background(), events)
	require.NoError(t, err)

	cfg.Workers = 7
	parallel, err := NewFinder(testLogger(), cfg).FindDuplicates(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	for k := 1; k < len(serial); k++ {
		prev, cur := serial[k-1], serial[k]
		assert.True(t, prev.Index1 < cur.Index1 || (prev.Index1 == cur.Index1 && prev.Index2 < cur.Index2))
	}
}

func TestFinder_Scale(t *testing.T) {
	events := syntheticEvents(1000)
	finder := NewFinder(testLogger(), DefaultConfig())

	start := time.Now()
	matches, err := finder.FindDuplicates(context.Background(), events)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 5*time.Second)
	// Every synthetic event is listed once per source: 6 cross-source pairs each
	assert.GreaterOrEqual(t, len(matches), 1000/4*6)
}

var (
	adjectives = []string{"Midnight", "Summer", "Grand", "Little", "Electric", "Royal", "Silent", "Golden", "Wild", "Blue"}
	nouns      = []string{"Jazz Night", "Comedy Gala", "Opera", "Orchestra", "Ballet", "Circus", "Cabaret", "Film Festival", "Market", "Choir"}
	venues     = []string{"Princess Theatre", "Forum Theatre", "Hamer Hall", "Arts Centre Playhouse", "Athenaeum Theatre", "Palais Theatre", "Comedy Theatre", "Regent Theatre"}
)

// syntheticEvents lists n/4 events once per source with the variations scrapers produce
func syntheticEvents(n int) []models.EventRecord {
	sources := models.AllSources()
	events := make([]models.EventRecord, 0, n)
	for k := 0; k < n; k++ {
		id := k / len(sources)
		source := sources[k%len(sources)]

		title := fmt.Sprintf("%s %s %d", adjectives[id%len(adjectives)], nouns[(id/len(adjectives))%len(nouns)], id)
		venue := venues[id%len(venues)]
		switch k % len(sources) {
		case 1:
			title += " LIVE"
			venue += ", Melbourne"
		case 2:
			title = "The " + title
		case 3:
			venue = "The " + venue + " VIC"
		}

		events = append(events, event(source, fmt.Sprintf("%s-%d", source, k), title, venue, (id*3)%365))
	}
	return events
}
