package cart

import "sync"

// Store is the in-memory cart. It performs no I/O and every operation is
// total. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	lines []LineItem
}

// NewStore creates an empty cart
func NewStore() *Store {
	return &Store{}
}

// AddItem merges line into an existing line with the same identity by
// adding its quantity (and, for tickets, its seats); otherwise it appends
// the line. Lines with a quantity below 1 are ignored.
func (s *Store) AddItem(line LineItem) {
	if line.Quantity < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(line.Key()); i >= 0 {
		existing := &s.lines[i]
		existing.Quantity += line.Quantity
		if line.Kind == KindTicket && len(line.SeatIDs) > 0 {
			existing.SeatIDs = dedupe(append(existing.SeatIDs, line.SeatIDs...))
		}
		return
	}

	line = line.clone()
	line.SeatIDs = dedupe(line.SeatIDs)
	s.lines = append(s.lines, line)
}

// RemoveItem deletes the line with the given identity. Absent lines are ignored.
func (s *Store) RemoveItem(catalogItemID, variant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(Key{CatalogItemID: catalogItemID, Variant: variant})
}

// UpdateQuantity sets the quantity of a line; n <= 0 removes it.
func (s *Store) UpdateQuantity(catalogItemID, variant string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{CatalogItemID: catalogItemID, Variant: variant}
	if n <= 0 {
		s.removeLocked(key)
		return
	}
	if i := s.indexOf(key); i >= 0 {
		s.lines[i].Quantity = n
	}
}

// Clear empties the cart
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Lines returns a copy of the current lines in insertion order
func (s *Store) Lines() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LineItem, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.clone()
	}
	return out
}

// Total is Σ UnitPrice × Quantity, recomputed on every call.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, l := range s.lines {
		total += l.Subtotal()
	}
	return total
}

// Count is the number of units in the cart (Σ Quantity).
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// LineCount is the number of distinct lines.
func (s *Store) LineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// IsEmpty reports whether the cart has no lines
func (s *Store) IsEmpty() bool {
	return s.LineCount() == 0
}

// FlagSeatsForReselection marks every ticket line holding any of seatIDs.
// It returns how many lines were flagged.
func (s *Store) FlagSeatsForReselection(seatIDs []string) int {
	if len(seatIDs) == 0 {
		return 0
	}
	lost := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		lost[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flagged := 0
	for i := range s.lines {
		if !s.lines[i].HasSeats() {
			continue
		}
		for _, id := range s.lines[i].SeatIDs {
			if _, ok := lost[id]; ok {
				s.lines[i].NeedsReselection = true
				flagged++
				break
			}
		}
	}
	return flagged
}

// Flagged returns the lines awaiting seat reselection
func (s *Store) Flagged() []LineItem {
	var out []LineItem
	for _, l := range s.Lines() {
		if l.NeedsReselection {
			out = append(out, l)
		}
	}
	return out
}

// SeatIDs returns every seat referenced by ticket lines, in line order
func (s *Store) SeatIDs() []string {
	var ids []string
	for _, l := range s.Lines() {
		if l.HasSeats() {
			ids = append(ids, l.SeatIDs...)
		}
	}
	return dedupe(ids)
}

func (s *Store) indexOf(key Key) int {
	for i, l := range s.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(key Key) {
	if i := s.indexOf(key); i >= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
}
