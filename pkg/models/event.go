package models

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
)

// Source identifies an upstream listing provider
type Source string

const (
	SourceTicketingAPI           Source = "ticketing_api"           // Ticketing platform API
	SourceTheatreOperator        Source = "theatre_operator"        // Theatre operator's own site
	SourceMunicipalListings      Source = "municipal_listings"      // Municipal listings site
	SourceExperiencesMarketplace Source = "experiences_marketplace" // Experiential events marketplace
)

// AllSources returns every known source in declaration order
func AllSources() []Source {
	return []Source{
		SourceTicketingAPI,
		SourceTheatreOperator,
		SourceMunicipalListings,
		SourceExperiencesMarketplace,
	}
}

// IsValid reports whether the source is one of the known providers
func (s Source) IsValid() bool {
	for _, known := range AllSources() {
		if s == known {
			return true
		}
	}
	return false
}

// Venue is the location an event is held at
type Venue struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Suburb  string `json:"suburb"`
}

// EventRecord is a single listing as normalised by a source scraper.
// Records are treated as immutable inputs. Title and venue name may be blank: such records
// are never matched but still pass through resolution on their own.
type EventRecord struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Subcategories  []string   `json:"subcategories,omitempty"`
	StartDate      time.Time  `json:"start_date" validate:"required"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Venue          Venue      `json:"venue"`
	PriceMin       *float64   `json:"price_min,omitempty"`
	PriceMax       *float64   `json:"price_max,omitempty"`
	PriceDetails   *string    `json:"price_details,omitempty"`
	IsFree         bool       `json:"is_free"`
	BookingURL     string     `json:"booking_url"`
	ImageURL       *string    `json:"image_url,omitempty"`
	VideoURL       *string    `json:"video_url,omitempty"`
	Accessibility  []string   `json:"accessibility,omitempty"`
	AgeRestriction *string    `json:"age_restriction,omitempty"`
	Duration       *string    `json:"duration,omitempty"`
	Source         Source     `json:"source" validate:"required"`
	SourceID       string     `json:"source_id" validate:"required"`
	ScrapedAt      time.Time  `json:"scraped_at"`
	LastUpdated    time.Time  `json:"last_updated"`
}

// Key returns the record's identity within the system: "<source>:<source_id>"
func (e *EventRecord) Key() string {
	return string(e.Source) + ":" + e.SourceID
}

// End returns the end of the event's run, falling back to its start
func (e *EventRecord) End() time.Time {
	if e.EndDate != nil {
		return *e.EndDate
	}
	return e.StartDate
}

// IsMalformed reports whether the record lacks the fields needed for matching
func (e *EventRecord) IsMalformed() bool {
	return strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Venue.Name) == ""
}

var recordValidator = validator.New()

// Validate checks the record against its struct constraints
func (e *EventRecord) Validate() error {
	if err := recordValidator.Struct(e); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid event record %q: %s", e.Key(), err.Error())
	}
	if !e.Source.IsValid() {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid event record %q: unknown source", e.Key())
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid event record %q: end date before start date", e.Key())
	}
	return nil
}

// Clone returns a deep copy of the record
func (e EventRecord) Clone() EventRecord {
	out := e
	out.Subcategories = cloneStrings(e.Subcategories)
	out.Accessibility = cloneStrings(e.Accessibility)
	out.EndDate = clonePtr(e.EndDate)
	out.PriceMin = clonePtr(e.PriceMin)
	out.PriceMax = clonePtr(e.PriceMax)
	out.PriceDetails = clonePtr(e.PriceDetails)
	out.ImageURL = clonePtr(e.ImageURL)
	out.VideoURL = clonePtr(e.VideoURL)
	out.AgeRestriction = clonePtr(e.AgeRestriction)
	out.Duration = clonePtr(e.Duration)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
