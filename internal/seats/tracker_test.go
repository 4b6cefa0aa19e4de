package seats

import (
	"context"
	"testing"
	"time"

	"fanclub/internal/shared/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	results []Availability
	err     error
	calls   []string
}

func (s *stubSource) GetAvailability(ctx context.Context, eventID string) (Availability, error) {
	s.calls = append(s.calls, eventID)
	if s.err != nil {
		return Availability{}, s.err
	}
	a := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return a, nil
}

func TestTrackerFetchStoresSnapshot(t *testing.T) {
	src := &stubSource{results: []Availability{{Taken: []string{"A1"}, Held: []string{"A2"}}}}
	mock := newMockClock()
	tr := NewTracker(src, mock)

	_, ok := tr.Snapshot()
	assert.False(t, ok)

	a, err := tr.Fetch(context.Background(), "ev-1")
	require.NoError(t, err)

	assert.Equal(t, "ev-1", a.EventID)
	assert.Equal(t, epoch, a.FetchedAt)
	snap, ok := tr.Snapshot()
	require.True(t, ok)
	assert.Equal(t, a, snap)
}

func TestTrackerRefetchReadsLastEvent(t *testing.T) {
	src := &stubSource{results: []Availability{
		{Taken: []string{"A1"}},
		{Taken: []string{"A1"}, Held: []string{"B4"}},
	}}
	mock := newMockClock()
	tr := NewTracker(src, mock)
	ctx := context.Background()

	_, err := tr.Refetch(ctx)
	assert.Error(t, err)

	_, err = tr.Fetch(ctx, "ev-1")
	require.NoError(t, err)
	mock.Add(time.Minute)

	a, err := tr.Refetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B4"}, a.Held)
	assert.Equal(t, epoch.Add(time.Minute), a.FetchedAt)
	assert.Equal(t, []string{"ev-1", "ev-1"}, src.calls)
}

func TestTrackerErrorKeepsSnapshot(t *testing.T) {
	src := &stubSource{results: []Availability{{Taken: []string{"A1"}}}}
	tr := NewTracker(src, newMockClock())
	ctx := context.Background()

	_, err := tr.Fetch(ctx, "ev-1")
	require.NoError(t, err)

	src.err = apperr.ErrNetwork
	_, err = tr.Refetch(ctx)
	assert.Equal(t, apperr.ErrNetwork, err)

	snap, ok := tr.Snapshot()
	require.True(t, ok)
	assert.Equal(t, []string{"A1"}, snap.Taken)
}

func TestAvailabilityFilter(t *testing.T) {
	a := Availability{Taken: []string{"A1"}, Held: []string{"A2", "A3"}}

	free, unavailable := a.Filter([]string{"A1", "A2", "A3", "A4"}, "A3")

	assert.Equal(t, []string{"A3", "A4"}, free)
	assert.Equal(t, []string{"A1", "A2"}, unavailable)
	assert.True(t, a.IsFree("A4"))
	assert.False(t, a.IsFree("A2"))
}

func TestSeatHoldValidity(t *testing.T) {
	h := newSeatHold("ev-1", []string{"A1"}, HoldGrant{Token: "t", TTLSeconds: 30}, epoch)

	assert.True(t, h.ValidAt(epoch.Add(29*time.Second)))
	assert.False(t, h.ValidAt(epoch.Add(30*time.Second)))
}
