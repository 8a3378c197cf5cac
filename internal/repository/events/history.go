package events

import (
	"context"
	"sync"

	"github.com/oshokin/homee/internal/domain/home"
)

// DefaultHistorySize caps the in-memory history.
const DefaultHistorySize = 500

// History keeps the most recent events in memory for the dashboard.
type History struct {
	mu     sync.RWMutex
	events []home.Event
	// start is the ring index of the oldest event.
	start int
	size  int
}

// NewHistory creates a ring holding at most size events.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}

	return &History{
		events: make([]home.Event, 0, size),
		size:   size,
	}
}

// Name implements Writer.
func (h *History) Name() string {
	return "history"
}

// Write implements Writer.
func (h *History) Write(_ context.Context, ev home.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.events) < h.size {
		h.events = append(h.events, ev)
		return nil
	}

	h.events[h.start] = ev
	h.start = (h.start + 1) % h.size

	return nil
}

// List returns up to limit events, newest first. A limit of zero or less returns all.
func (h *History) List(limit int) []home.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.events)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]home.Event, 0, limit)
	for i := range limit {
		idx := (h.start + n - 1 - i) % n
		out = append(out, h.events[idx])
	}

	return out
}

// Clear drops every event.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = h.events[:0]
	h.start = 0
}
