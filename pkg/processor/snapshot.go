package processor

import (
	"container/list"
	"sort"
	"time"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolution"
)

// snapshot remembers the latest record per key and the canonical event it was last
// published in, so each batch is resolved against the records earlier batches brought in.
// Keys not seen for longest are evicted once capacity is reached.
// Only the batch loop touches it.
type snapshot struct {
	capacity int
	order    *list.List // Front is most recently seen
	items    map[string]*list.Element
	groups   map[string][]string // Canonical ID to member keys
}

type snapshotEntry struct {
	record      models.EventRecord
	canonicalID string
}

func newSnapshot(capacity int) *snapshot {
	if capacity <= 0 {
		capacity = DefaultConfig().TrackerCapacity
	}
	return &snapshot{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		groups:   make(map[string][]string),
	}
}

// Len returns the number of remembered records
func (s *snapshot) Len() int {
	return s.order.Len()
}

// related returns the remembered records a batch has to be resolved with: those whose run
// lies within window of a batch record, plus every other member of the canonical events
// they or the batch records were published in. Records present in the batch are left out.
// A negative window selects everything. Oldest first.
func (s *snapshot) related(batch []models.EventRecord, window time.Duration) []models.EventRecord {
	if s.order.Len() == 0 || len(batch) == 0 {
		return nil
	}

	inBatch := make(map[string]bool, len(batch))
	for i := range batch {
		inBatch[batch[i].Key()] = true
	}
	near := newSpans(batch, window)

	selected := make(map[string]bool)
	selectGroup := func(canonicalID string) {
		for _, member := range s.groups[canonicalID] {
			selected[member] = true
		}
	}

	for key := range inBatch {
		if el, ok := s.items[key]; ok {
			selectGroup(el.Value.(*snapshotEntry).canonicalID)
		}
	}
	for el := s.order.Back(); el != nil; el = el.Prev() {
		entry := el.Value.(*snapshotEntry)
		key := entry.record.Key()
		if selected[key] {
			continue
		}
		if window >= 0 && !near.overlaps(entry.record.StartDate, entry.record.End()) {
			continue
		}
		selected[key] = true
		selectGroup(entry.canonicalID)
	}

	out := make([]models.EventRecord, 0, len(selected))
	for el := s.order.Back(); el != nil; el = el.Prev() {
		entry := el.Value.(*snapshotEntry)
		key := entry.record.Key()
		if selected[key] && !inBatch[key] {
			out = append(out, entry.record)
		}
	}
	return out
}

// supersessions lists the previously published canonical IDs the resolved events no longer
// produce, each pointing at the first canonical event that took over one of its records
func (s *snapshot) supersessions(canonical []models.CanonicalEvent) []events.Supersession {
	current := make(map[string]bool, len(canonical))
	for _, event := range canonical {
		current[event.ID] = true
	}

	var out []events.Supersession
	retired := make(map[string]bool)
	for _, event := range canonical {
		for _, key := range event.MergedFrom {
			el, ok := s.items[key]
			if !ok {
				continue
			}
			prev := el.Value.(*snapshotEntry).canonicalID
			if current[prev] || retired[prev] {
				continue
			}
			retired[prev] = true
			out = append(out, events.Supersession{ID: prev, MergedInto: event.ID})
		}
	}
	return out
}

// record stores a published resolution as the latest state of its records
func (s *snapshot) record(records []models.EventRecord, result *resolution.Result, superseded []events.Supersession) {
	for _, sup := range superseded {
		delete(s.groups, sup.ID)
	}
	for g, group := range result.Groups {
		id := result.Canonical[g].ID
		s.groups[id] = append([]string(nil), result.Canonical[g].MergedFrom...)
		for _, idx := range group.Members {
			s.put(records[idx], id)
		}
	}
}

func (s *snapshot) put(record models.EventRecord, canonicalID string) {
	key := record.Key()
	if el, ok := s.items[key]; ok {
		entry := el.Value.(*snapshotEntry)
		entry.record = record
		entry.canonicalID = canonicalID
		s.order.MoveToFront(el)
		return
	}

	s.items[key] = s.order.PushFront(&snapshotEntry{record: record, canonicalID: canonicalID})
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		entry := oldest.Value.(*snapshotEntry)
		evicted := entry.record.Key()
		delete(s.items, evicted)
		s.dropMember(entry.canonicalID, evicted)
	}
}

func (s *snapshot) dropMember(canonicalID, key string) {
	members := s.groups[canonicalID]
	kept := members[:0]
	for _, m := range members {
		if m != key {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(s.groups, canonicalID)
		return
	}
	s.groups[canonicalID] = kept
}

// spans is a sorted list of disjoint time ranges
type spans [][2]time.Time

// newSpans covers every record's run widened by pad on both sides
func newSpans(records []models.EventRecord, pad time.Duration) spans {
	raw := make(spans, 0, len(records))
	for i := range records {
		raw = append(raw, [2]time.Time{records[i].StartDate.Add(-pad), records[i].End().Add(pad)})
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i][0].Before(raw[j][0]) })

	merged := raw[:0]
	for _, span := range raw {
		if n := len(merged); n > 0 && !span[0].After(merged[n-1][1]) {
			if span[1].After(merged[n-1][1]) {
				merged[n-1][1] = span[1]
			}
			continue
		}
		merged = append(merged, span)
	}
	return merged
}

// overlaps reports whether [start, end] touches any span
func (s spans) overlaps(start, end time.Time) bool {
	i := sort.Search(len(s), func(i int) bool { return !s[i][1].Before(start) })
	return i < len(s) && !s[i][0].After(end)
}
