package seats

import (
	"context"
	"time"
)

// Availability is a point-in-time view of an event's seat map.
type Availability struct {
	EventID   string    `json:"eventId"`
	Taken     []string  `json:"takenSeatIds"`
	Held      []string  `json:"heldSeatIds"`
	FetchedAt time.Time `json:"-"`
}

// IsFree reports whether a seat is neither sold nor held by anyone
func (a Availability) IsFree(seatID string) bool {
	for _, id := range a.Taken {
		if id == seatID {
			return false
		}
	}
	for _, id := range a.Held {
		if id == seatID {
			return false
		}
	}
	return true
}

// Filter splits a selection into seats still free and seats that are not.
// ownHeld lists seats held by the caller's own live hold; they count as free.
func (a Availability) Filter(seatIDs []string, ownHeld ...string) (free, unavailable []string) {
	own := make(map[string]struct{}, len(ownHeld))
	for _, id := range ownHeld {
		own[id] = struct{}{}
	}
	taken := make(map[string]struct{}, len(a.Taken))
	for _, id := range a.Taken {
		taken[id] = struct{}{}
	}
	held := make(map[string]struct{}, len(a.Held))
	for _, id := range a.Held {
		held[id] = struct{}{}
	}

	for _, id := range seatIDs {
		_, isTaken := taken[id]
		_, isHeld := held[id]
		_, isOwn := own[id]
		if isTaken || (isHeld && !isOwn) {
			unavailable = append(unavailable, id)
			continue
		}
		free = append(free, id)
	}
	return free, unavailable
}

// HoldGrant is what the remote store returns for a hold request or refresh.
type HoldGrant struct {
	Token      string `json:"holdToken"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// TTL returns the grant lifetime as a duration
func (g HoldGrant) TTL() time.Duration {
	return time.Duration(g.TTLSeconds) * time.Second
}

// SeatHold is a live, server-granted exclusive claim on seats.
type SeatHold struct {
	Token      string
	EventID    string
	SeatIDs    []string
	TTLSeconds int
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// ValidAt reports whether the hold is still alive at now
func (h SeatHold) ValidAt(now time.Time) bool {
	return now.Before(h.ExpiresAt)
}

func newSeatHold(eventID string, seatIDs []string, grant HoldGrant, issuedAt time.Time) SeatHold {
	return SeatHold{
		Token:      grant.Token,
		EventID:    eventID,
		SeatIDs:    append([]string(nil), seatIDs...),
		TTLSeconds: grant.TTLSeconds,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(grant.TTL()),
	}
}

// HoldState is the lifecycle of a selection session's hold.
type HoldState string

const (
	StateIdle       HoldState = "IDLE"
	StateHeld       HoldState = "HELD"
	StateRefreshing HoldState = "REFRESHING"
	StateReleased   HoldState = "RELEASED"
	StateExpired    HoldState = "EXPIRED"
)

// IsTerminal reports whether no further hold operation is possible
func (s HoldState) IsTerminal() bool {
	return s == StateReleased || s == StateExpired
}

// AvailabilitySource fetches the seat map of an event.
type AvailabilitySource interface {
	GetAvailability(ctx context.Context, eventID string) (Availability, error)
}

// HoldRemote is the remote side of seat holds. Passing a non-empty token to
// HoldSeats extends that hold instead of creating a new one.
type HoldRemote interface {
	HoldSeats(ctx context.Context, eventID string, seatIDs []string, token string) (HoldGrant, error)
	RefreshHold(ctx context.Context, token string) (HoldGrant, error)
	ReleaseHold(ctx context.Context, token string) error
}

func (h SeatHold) clone() SeatHold {
	h.SeatIDs = append([]string(nil), h.SeatIDs...)
	return h
}

// Remote is everything a seat-selection session needs from the store.
type Remote interface {
	AvailabilitySource
	HoldRemote
}
