package connection

import (
	"sync"
	"sync/atomic"
)

// Handler receives every inbound text frame as raw bytes.
type Handler func(frame []byte)

type handlerEntry struct {
	id      uint64
	fn      Handler
	removed atomic.Bool
}

// registry is an ordered list of handlers.
type registry struct {
	mu      sync.RWMutex
	entries []*handlerEntry
	nextID  uint64
}

func (r *registry) add(fn Handler) *handlerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	e := &handlerEntry{id: r.nextID, fn: fn}
	r.entries = append(r.entries, e)
	return e
}

func (r *registry) remove(e *handlerEntry) {
	if e.removed.Swap(true) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// dispatch delivers frame to a snapshot of the handlers. Handlers removed
// earlier in the same dispatch are skipped.
func (r *registry) dispatch(frame []byte) {
	r.mu.RLock()
	snapshot := make([]*handlerEntry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.RUnlock()

	for _, e := range snapshot {
		if e.removed.Load() {
			continue
		}
		e.fn(frame)
	}
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Subscription is a registered handler.
type Subscription struct {
	reg   *registry
	entry *handlerEntry
}

// Cancel deregisters the handler. It is safe to call more than once and
// from inside the handler itself.
func (s *Subscription) Cancel() {
	s.reg.remove(s.entry)
}
