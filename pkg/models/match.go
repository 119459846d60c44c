package models

import (
	"strings"

	"github.com/google/uuid"
)

// DuplicateMatch is a scored, explained pairing of two records believed to describe
// the same real-world event
type DuplicateMatch struct {
	Event1ID    string  `json:"event1_id"`
	Event2ID    string  `json:"event2_id"`
	Index1      int     `json:"-"` // Position of the first record in the scanned batch
	Index2      int     `json:"-"` // Position of the second record in the scanned batch
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"` // e.g. "89% (t:95 d:100 v:80)"
	ShouldMerge bool    `json:"should_merge"`
}

// CanonicalEvent is the single record representing a duplicate-matched group
type CanonicalEvent struct {
	EventRecord
	ID          string   `json:"id"`
	MergedFrom  []string `json:"merged_from"` // Member record keys, primary first
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// canonicalNamespace scopes canonical event IDs
var canonicalNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Ramsey-B/fern/canonical-event"))

// CanonicalID derives a stable ID from the (sorted) member keys of a group
func CanonicalID(sortedKeys []string) string {
	return uuid.NewSHA1(canonicalNamespace, []byte(strings.Join(sortedKeys, "|"))).String()
}

// NewCanonicalEvent wraps a single record as its own canonical event
func NewCanonicalEvent(record EventRecord) CanonicalEvent {
	key := record.Key()
	return CanonicalEvent{
		EventRecord: record.Clone(),
		ID:          CanonicalID([]string{key}),
		MergedFrom:  []string{key},
	}
}
