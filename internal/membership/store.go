package membership

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"fanclub/internal/shared/apperr"
	"fanclub/pkg/logger"
)

// Persistence stores the committed tier as a small string. Get returns
// apperr.ErrNotFound when nothing was stored yet.
type Persistence interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, value string) error
}

// Listener is notified synchronously after a commit
type Listener func(change Change)

// TierStore owns the current tier. There is exactly one current value;
// Commit persists it first and then notifies subscribers.
type TierStore struct {
	engine  *Engine
	persist Persistence
	log     *logger.Logger

	mu        sync.Mutex
	current   Tier
	listeners map[int]Listener
	nextID    int
}

// NewTierStore loads the persisted tier, falling back to fallback when none
// (or an unknown value) is stored.
func NewTierStore(ctx context.Context, engine *Engine, persist Persistence, fallback Tier) (*TierStore, error) {
	if !engine.Known(fallback) {
		return nil, fmt.Errorf("unknown fallback tier %q", fallback)
	}

	s := &TierStore{
		engine:    engine,
		persist:   persist,
		log:       logger.GetDefault(),
		current:   fallback,
		listeners: make(map[int]Listener),
	}

	stored, err := persist.Get(ctx)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load membership tier: %w", err)
	case engine.Known(Tier(stored)):
		s.current = Tier(stored)
	default:
		s.log.Warn("ignoring unknown persisted tier", "tier", stored)
	}

	return s, nil
}

// GetSnapshot returns the committed tier
func (s *TierStore) GetSnapshot() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers l and returns a function that removes it
func (s *TierStore) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Commit makes t the current tier. Subscribers are called in subscription
// order after the new value is persisted and visible.
func (s *TierStore) Commit(ctx context.Context, t Tier) error {
	if !s.engine.Known(t) {
		return apperr.New(apperr.CodeValidation, fmt.Sprintf("unknown tier %q", t))
	}

	s.mu.Lock()
	from := s.current
	if err := s.persist.Set(ctx, string(t)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist membership tier: %w", err)
	}
	s.current = t
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	s.log.LogTierChanged(ctx, string(from), string(t))

	change := Change{From: from, To: t}
	for _, l := range listeners {
		l(change)
	}
	return nil
}

func (s *TierStore) snapshotListenersLocked() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}
