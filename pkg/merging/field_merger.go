package merging

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Gobusters/ectolinq"
)

// FieldMerger holds the field-level merge rules
type FieldMerger struct {
	sentinel     string
	placeholders []string
	separator    string
}

// NewFieldMerger creates a new FieldMerger
func NewFieldMerger(cfg Config) *FieldMerger {
	placeholders := ectolinq.Map(cfg.AddressPlaceholders, func(p string) string {
		return strings.ToLower(strings.TrimSpace(p))
	})
	return &FieldMerger{
		sentinel:     strings.TrimSpace(cfg.NoDescriptionSentinel),
		placeholders: placeholders,
		separator:    cfg.PriceDetailsSeparator,
	}
}

// Description returns the longer of two descriptions, ignoring blanks and the sentinel.
// Ties keep the primary. When neither is usable the primary's value is kept as is.
func (m *FieldMerger) Description(primary, secondary string) string {
	pOK, sOK := m.hasDescription(primary), m.hasDescription(secondary)
	switch {
	case pOK && sOK:
		if utf8.RuneCountInString(strings.TrimSpace(secondary)) > utf8.RuneCountInString(strings.TrimSpace(primary)) {
			return secondary
		}
		return primary
	case sOK:
		return secondary
	case pOK:
		return primary
	}
	if primary == "" {
		return secondary
	}
	return primary
}

func (m *FieldMerger) hasDescription(d string) bool {
	d = strings.TrimSpace(d)
	return d != "" && !strings.EqualFold(d, m.sentinel)
}

// Subcategories unions both tag sets and demotes a differing secondary category to a tag.
// Tags brought in by the secondary never repeat the kept category; the primary's own tags
// are kept as they are. Tags compare case-insensitively; output is sorted.
func (m *FieldMerger) Subcategories(category string, primary, secondary []string, secondaryCategory string) []string {
	incoming := make([]string, 0, len(secondary)+1)
	incoming = append(incoming, secondary...)
	incoming = append(incoming, secondaryCategory)
	incoming = ectolinq.Filter(incoming, func(tag string) bool {
		return !strings.EqualFold(strings.TrimSpace(tag), strings.TrimSpace(category))
	})

	return UnionStrings(append(append([]string{}, primary...), incoming...))
}

// UnionStrings returns the distinct non-blank values of in, compared case-insensitively,
// sorted. The first spelling seen is kept.
func UnionStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// EarliestStart returns the earlier of two starts
func (m *FieldMerger) EarliestStart(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

// LatestEnd returns the later of two run ends (each already defaulted to its start).
// When neither record carried an explicit end and the merged run is a single instant,
// no end date is reported.
func (m *FieldMerger) LatestEnd(start, a, b time.Time, explicit bool) *time.Time {
	end := a
	if b.After(end) {
		end = b
	}
	if !explicit && !end.After(start) {
		return nil
	}
	return &end
}

// LowerPrice returns the lower of two optional prices
func (m *FieldMerger) LowerPrice(a, b *float64) *float64 {
	return pickPrice(a, b, func(x, y float64) bool { return y < x })
}

// HigherPrice returns the higher of two optional prices
func (m *FieldMerger) HigherPrice(a, b *float64) *float64 {
	return pickPrice(a, b, func(x, y float64) bool { return y > x })
}

func pickPrice(a, b *float64, better func(x, y float64) bool) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil || !better(*a, *b):
		v := *a
		return &v
	default:
		v := *b
		return &v
	}
}

// PriceDetails joins the distinct detail strings of both records. Details that were
// already joined by an earlier merge are split first so repeats are not appended twice.
func (m *FieldMerger) PriceDetails(primary, secondary *string) *string {
	var parts []string
	seen := make(map[string]bool)
	for _, details := range []*string{primary, secondary} {
		if details == nil {
			continue
		}
		for _, part := range strings.Split(*details, m.separator) {
			part = strings.TrimSpace(part)
			key := strings.ToLower(part)
			if part == "" || seen[key] {
				continue
			}
			seen[key] = true
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, m.separator)
	return &joined
}

// Address prefers a concrete address over a placeholder or blank one, primary first
func (m *FieldMerger) Address(primary, secondary string) string {
	switch {
	case m.isConcreteAddress(primary):
		return primary
	case m.isConcreteAddress(secondary):
		return secondary
	case strings.TrimSpace(primary) != "":
		return primary
	default:
		return secondary
	}
}

func (m *FieldMerger) isConcreteAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	return !ectolinq.Contains(m.placeholders, strings.ToLower(addr))
}

// FirstNonEmpty returns primary unless it is blank
func FirstNonEmpty(primary, secondary string) string {
	return ectolinq.Ternary(strings.TrimSpace(primary) != "", primary, secondary)
}

// FirstNonEmptyPtr returns a copy of primary unless it is nil or blank
func FirstNonEmptyPtr(primary, secondary *string) *string {
	for _, p := range []*string{primary, secondary} {
		if p != nil && strings.TrimSpace(*p) != "" {
			v := *p
			return &v
		}
	}
	return nil
}

// LaterTime returns the later of two timestamps
func LaterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// EarlierNonZero returns the earlier of two timestamps, ignoring zero values
func EarlierNonZero(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}
