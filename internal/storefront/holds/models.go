package holds

import "time"

// HoldDetails is the server-side record of a live hold.
type HoldDetails struct {
	Token   string   `json:"holdToken"`
	UserID  string   `json:"userId"`
	EventID string   `json:"eventId"`
	SeatIDs []string `json:"seatIds"`
	TTL     int      `json:"ttlSeconds"`
}

// Covers reports whether every seat in seatIDs belongs to the hold
func (h *HoldDetails) Covers(seatIDs []string) bool {
	held := make(map[string]struct{}, len(h.SeatIDs))
	for _, id := range h.SeatIDs {
		held[id] = struct{}{}
	}
	for _, id := range seatIDs {
		if _, ok := held[id]; !ok {
			return false
		}
	}
	return true
}

// HoldSeatsRequest creates a hold, or extends the one named by HoldToken
type HoldSeatsRequest struct {
	SeatIDs   []string `json:"seatIds" binding:"required,min=1,max=10,dive,required"`
	HoldToken string   `json:"holdToken"`
}

// HoldGrantResponse answers hold and refresh requests
type HoldGrantResponse struct {
	HoldToken  string    `json:"holdToken"`
	TTLSeconds int       `json:"ttlSeconds"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// AvailabilityResponse lists the seats a fan cannot pick
type AvailabilityResponse struct {
	EventID string   `json:"eventId"`
	Taken   []string `json:"takenSeatIds"`
	Held    []string `json:"heldSeatIds"`
}
