package seats

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
)

// Tracker keeps the last availability snapshot of one event. It never
// polls; callers re-fetch after a conflict.
type Tracker struct {
	source AvailabilitySource
	clock  clock.Clock

	mu       sync.RWMutex
	eventID  string
	snapshot *Availability
}

// NewTracker creates a tracker over source
func NewTracker(source AvailabilitySource, c clock.Clock) *Tracker {
	if c == nil {
		c = clock.New()
	}
	return &Tracker{source: source, clock: c}
}

// Fetch reads the availability of eventID and stores it as the snapshot.
// Errors are returned unmodified and leave the previous snapshot in place.
func (t *Tracker) Fetch(ctx context.Context, eventID string) (Availability, error) {
	if eventID == "" {
		return Availability{}, fmt.Errorf("event ID is required")
	}

	a, err := t.source.GetAvailability(ctx, eventID)
	if err != nil {
		return Availability{}, err
	}
	a.EventID = eventID
	a.FetchedAt = t.clock.Now()

	t.mu.Lock()
	t.eventID = eventID
	t.snapshot = &a
	t.mu.Unlock()

	return a, nil
}

// Refetch reads the last fetched event again
func (t *Tracker) Refetch(ctx context.Context) (Availability, error) {
	t.mu.RLock()
	eventID := t.eventID
	t.mu.RUnlock()

	if eventID == "" {
		return Availability{}, fmt.Errorf("nothing fetched yet")
	}
	return t.Fetch(ctx, eventID)
}

// Snapshot returns the last successful fetch
func (t *Tracker) Snapshot() (Availability, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.snapshot == nil {
		return Availability{}, false
	}
	return *t.snapshot, true
}
