package fingerprint

import (
	"container/list"
	"sync"
)

// Tracker remembers the last fingerprint emitted per canonical event ID, evicting the
// least recently seen IDs once capacity is reached. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // Front is most recently seen
	items    map[string]*list.Element
}

type trackerEntry struct {
	id          string
	fingerprint string
}

// NewTracker creates a tracker holding at most capacity IDs
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 100_000
	}
	return &Tracker{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Changed reports whether fp differs from the fingerprint last recorded for id.
// An ID that was never recorded counts as changed.
func (t *Tracker) Changed(id, fp string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.items[id]
	if !ok {
		return true
	}
	t.order.MoveToFront(el)
	return HasChanged(el.Value.(*trackerEntry).fingerprint, fp)
}

// Record stores fp as the latest fingerprint for id
func (t *Tracker) Record(id, fp string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.items[id]; ok {
		el.Value.(*trackerEntry).fingerprint = fp
		t.order.MoveToFront(el)
		return
	}

	t.items[id] = t.order.PushFront(&trackerEntry{id: id, fingerprint: fp})
	for t.order.Len() > t.capacity {
		oldest := t.order.Back()
		t.order.Remove(oldest)
		delete(t.items, oldest.Value.(*trackerEntry).id)
	}
}

// Forget drops an ID so its next fingerprint is treated as new
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.items[id]; ok {
		t.order.Remove(el)
		delete(t.items, id)
	}
}

// Len returns the number of tracked IDs
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
