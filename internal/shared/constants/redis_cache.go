package constants

import (
	"fmt"
	"time"
)

// Redis key layout of the storefront
// Pattern: fanclub:{module}:{operation}:{identifier}
//
// Hold keys (hold:, hold_seats:, seat_hold:, user_holds:) are built inside
// the hold Lua scripts and are not listed here.

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_REALTIME_SHORT = 5 * time.Second // availability snapshots
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "fanclub"
)

// ================== HOLDS MODULE ==================

const (
	// Sold plus held seats of an event, invalidated on every hold change
	CACHE_KEY_AVAILABILITY = CACHE_PREFIX + ":holds:availability:event:" // + event-id
)

const (
	TTL_AVAILABILITY = TTL_REALTIME_SHORT
)

// ================== MEMBERSHIP MODULE ==================

const (
	// Applied tier of a fan, no TTL
	KEY_MEMBERSHIP_TIER = CACHE_PREFIX + ":membership:tier" // + :club:X:user:Y
)

// BuildAvailabilityKey builds the availability cache key of an event
func BuildAvailabilityKey(eventID string) string {
	return CACHE_KEY_AVAILABILITY + eventID
}

// BuildMembershipTierKey builds the applied tier key of a fan of a club
func BuildMembershipTierKey(clubID, userID string) string {
	return fmt.Sprintf("%s:club:%s:user:%s", KEY_MEMBERSHIP_TIER, clubID, userID)
}
