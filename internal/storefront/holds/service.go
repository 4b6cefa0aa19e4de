package holds

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fanclub/internal/shared/apperr"
	"fanclub/internal/shared/config"
	"fanclub/internal/shared/constants"
	"fanclub/pkg/cache"
	"fanclub/pkg/logger"

	"github.com/google/uuid"
)

// SoldSeatSource lists the seats already sold for an event. The order
// repository provides it.
type SoldSeatSource interface {
	SoldSeats(ctx context.Context, eventID string) ([]string, error)
}

type Service interface {
	Availability(ctx context.Context, eventID string) (*AvailabilityResponse, error)
	HoldSeats(ctx context.Context, userID, eventID string, req HoldSeatsRequest) (*HoldGrantResponse, error)
	RefreshHold(ctx context.Context, userID, token string) (*HoldGrantResponse, error)
	ReleaseHold(ctx context.Context, userID, token string) error

	// VerifyHold checks that token is a live hold of userID covering seatIDs
	VerifyHold(ctx context.Context, userID, token string, seatIDs []string) (*HoldDetails, error)
	// ConsumeHold frees the hold keys once its seats are sold
	ConsumeHold(ctx context.Context, token string) error
}

type service struct {
	repo         Repository
	sold         SoldSeatSource
	config       *config.Config
	cacheService cache.Service
	log          *logger.Logger
}

// NewService builds the hold service. cacheService may be nil, which turns
// off the availability cache.
func NewService(repo Repository, sold SoldSeatSource, cacheService cache.Service, cfg *config.Config, log *logger.Logger) Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{
		repo:         repo,
		sold:         sold,
		config:       cfg,
		cacheService: cacheService,
		log:          log,
	}
}

func (s *service) Availability(ctx context.Context, eventID string) (*AvailabilityResponse, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.New(apperr.CodeValidation, "event id is required")
	}

	fetch := func() (interface{}, error) {
		return s.loadAvailability(ctx, eventID)
	}
	if s.cacheService == nil {
		res, err := fetch()
		if err != nil {
			return nil, err
		}
		return res.(*AvailabilityResponse), nil
	}

	var res AvailabilityResponse
	if err := s.cacheService.GetOrSet(ctx, constants.BuildAvailabilityKey(eventID), s.config.Redis.AvailabilityTTL, fetch, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *service) loadAvailability(ctx context.Context, eventID string) (*AvailabilityResponse, error) {
	taken, err := s.sold.SoldSeats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sold seats: %w", err)
	}
	held, err := s.repo.HeldSeats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load held seats: %w", err)
	}
	if taken == nil {
		taken = []string{}
	}
	sort.Strings(taken)
	sort.Strings(held)

	return &AvailabilityResponse{EventID: eventID, Taken: taken, Held: held}, nil
}

func (s *service) invalidate(ctx context.Context, eventID string) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.BuildAvailabilityKey(eventID)); err != nil {
		s.log.WarnContext(ctx, "Failed to invalidate availability cache", "event_id", eventID, "error", err)
	}
}

func (s *service) HoldSeats(ctx context.Context, userID, eventID string, req HoldSeatsRequest) (*HoldGrantResponse, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.New(apperr.CodeValidation, "event id is required")
	}
	seatIDs := dedupe(req.SeatIDs)
	if len(seatIDs) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "no seats specified")
	}

	if conflicts, err := s.soldAmong(ctx, eventID, seatIDs); err != nil {
		return nil, err
	} else if len(conflicts) > 0 {
		return nil, apperr.Conflict("Seats are no longer available", conflicts)
	}

	token := req.HoldToken
	extend := token != ""
	if !extend {
		token = uuid.NewString()
	}

	ttl := s.config.Redis.SeatHoldTTL
	conflicts, err := s.repo.HoldSeats(ctx, token, userID, eventID, seatIDs, ttl, extend)
	if err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			return nil, apperr.New(apperr.CodeHoldExpired, "Hold has expired")
		}
		return nil, fmt.Errorf("failed to hold seats: %w", err)
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, apperr.Conflict("Seats are no longer available", conflicts)
	}

	s.invalidate(ctx, eventID)
	s.log.LogHoldAcquired(ctx, eventID, token, len(seatIDs), ttl)
	return grant(token, ttl), nil
}

// soldAmong returns the requested seats that are already sold
func (s *service) soldAmong(ctx context.Context, eventID string, seatIDs []string) ([]string, error) {
	sold, err := s.sold.SoldSeats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sold seats: %w", err)
	}
	soldSet := make(map[string]struct{}, len(sold))
	for _, id := range sold {
		soldSet[id] = struct{}{}
	}

	var conflicts []string
	for _, id := range seatIDs {
		if _, ok := soldSet[id]; ok {
			conflicts = append(conflicts, id)
		}
	}
	return conflicts, nil
}

func (s *service) RefreshHold(ctx context.Context, userID, token string) (*HoldGrantResponse, error) {
	ttl := s.config.Redis.SeatHoldTTL
	if err := s.repo.RefreshHold(ctx, token, userID, ttl); err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			return nil, apperr.New(apperr.CodeHoldExpired, "Hold has expired")
		}
		return nil, fmt.Errorf("failed to refresh hold: %w", err)
	}
	return grant(token, ttl), nil
}

func (s *service) ReleaseHold(ctx context.Context, userID, token string) error {
	details, err := s.repo.GetHoldDetails(ctx, token)
	if err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			return apperr.New(apperr.CodeHoldExpired, "Hold has expired")
		}
		return fmt.Errorf("failed to get hold: %w", err)
	}

	if err := s.repo.ReleaseHold(ctx, token, userID); err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			return apperr.New(apperr.CodeHoldExpired, "Hold has expired")
		}
		return fmt.Errorf("failed to release hold: %w", err)
	}

	s.invalidate(ctx, details.EventID)
	s.log.LogHoldReleased(ctx, token, "released by fan")
	return nil
}

func (s *service) VerifyHold(ctx context.Context, userID, token string, seatIDs []string) (*HoldDetails, error) {
	details, err := s.repo.GetHoldDetails(ctx, token)
	if err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			return nil, apperr.New(apperr.CodeHoldExpired, "Hold has expired")
		}
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	if details.UserID != userID {
		return nil, apperr.New(apperr.CodeHoldExpired, "Hold has expired")
	}
	if !details.Covers(seatIDs) {
		return nil, apperr.New(apperr.CodeHoldExpired, "Hold does not cover the requested seats")
	}
	return details, nil
}

func (s *service) ConsumeHold(ctx context.Context, token string) error {
	details, err := s.repo.GetHoldDetails(ctx, token)
	if err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.ReleaseHold(ctx, token, ""); err != nil && !errors.Is(err, ErrHoldNotFound) {
		return fmt.Errorf("failed to consume hold: %w", err)
	}
	s.invalidate(ctx, details.EventID)
	s.log.LogHoldReleased(ctx, token, "consumed by order")
	return nil
}

func grant(token string, ttl time.Duration) *HoldGrantResponse {
	return &HoldGrantResponse{
		HoldToken:  token,
		TTLSeconds: int(ttl.Seconds()),
		ExpiresAt:  time.Now().Add(ttl),
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
