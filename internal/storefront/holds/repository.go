package holds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHoldNotFound is returned when a hold has expired, was released or
// belongs to somebody else.
var ErrHoldNotFound = errors.New("hold not found")

type Repository interface {
	// HoldSeats returns the seats that could not be held. Nothing is written
	// when the slice is non-empty.
	HoldSeats(ctx context.Context, token, userID, eventID string, seatIDs []string, ttl time.Duration, extend bool) ([]string, error)
	RefreshHold(ctx context.Context, token, userID string, ttl time.Duration) error
	ReleaseHold(ctx context.Context, token, userID string) error
	GetHoldDetails(ctx context.Context, token string) (*HoldDetails, error)
	HeldSeats(ctx context.Context, eventID string) ([]string, error)
}

type repository struct {
	redis  *redis.Client
	atomic *AtomicRedisOperations
}

func NewRepository(redisClient *redis.Client) Repository {
	return &repository{
		redis:  redisClient,
		atomic: NewAtomicRedisOperations(redisClient),
	}
}

func seatHoldKey(eventID, seatID string) string {
	return fmt.Sprintf("seat_hold:%s:%s", eventID, seatID)
}

func (r *repository) HoldSeats(ctx context.Context, token, userID, eventID string, seatIDs []string, ttl time.Duration, extend bool) ([]string, error) {
	reply, err := r.atomic.AtomicHoldSeats(ctx, token, userID, eventID, seatIDs, ttl, extend)
	if err != nil {
		return nil, err
	}

	switch reply.status {
	case statusOK:
		return nil, nil
	case statusConflict:
		return reply.payload, nil
	case statusNotFound:
		return nil, ErrHoldNotFound
	default:
		return nil, fmt.Errorf("unexpected hold status %d", reply.status)
	}
}

func (r *repository) RefreshHold(ctx context.Context, token, userID string, ttl time.Duration) error {
	reply, err := r.atomic.AtomicRefreshHold(ctx, token, userID, ttl)
	if err != nil {
		return err
	}
	if reply.status != statusOK {
		return ErrHoldNotFound
	}
	return nil
}

func (r *repository) ReleaseHold(ctx context.Context, token, userID string) error {
	reply, err := r.atomic.AtomicReleaseHold(ctx, token, userID)
	if err != nil {
		return err
	}
	if reply.status != statusOK {
		return ErrHoldNotFound
	}
	return nil
}

func (r *repository) GetHoldDetails(ctx context.Context, token string) (*HoldDetails, error) {
	if r.redis == nil {
		return nil, fmt.Errorf("redis client not available")
	}

	holdKey := fmt.Sprintf("hold:%s", token)
	holdData, err := r.redis.HGetAll(ctx, holdKey).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(holdData) == 0 {
		return nil, ErrHoldNotFound
	}

	seatIDs, err := r.redis.SMembers(ctx, fmt.Sprintf("hold_seats:%s", token)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	ttl, err := r.redis.TTL(ctx, holdKey).Result()
	if err != nil {
		ttl = 0
	}

	return &HoldDetails{
		Token:   token,
		UserID:  holdData["user_id"],
		EventID: holdData["event_id"],
		SeatIDs: seatIDs,
		TTL:     int(ttl.Seconds()),
	}, nil
}

// HeldSeats scans the per-seat hold keys of an event
func (r *repository) HeldSeats(ctx context.Context, eventID string) ([]string, error) {
	if r.redis == nil {
		return []string{}, nil
	}

	prefix := seatHoldKey(eventID, "")
	seatIDs := []string{}
	iter := r.redis.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		seatIDs = append(seatIDs, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning held seats: %w", err)
	}
	return seatIDs, nil
}
