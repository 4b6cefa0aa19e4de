// Package tiers stores the tier each fan has been subscribed to.
package tiers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fanclub/internal/membership"
	"fanclub/internal/shared/apperr"
	"fanclub/internal/shared/constants"
	"fanclub/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// UpdateTierRequest is the body of PUT /membership
type UpdateTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

type Service interface {
	GetTier(ctx context.Context, clubID, userID string) (*membership.TierConfig, error)
	SetTier(ctx context.Context, clubID, userID string, tier membership.Tier) (*membership.TierConfig, error)
}

type service struct {
	redis  *redis.Client
	engine *membership.Engine
	log    *logger.Logger
}

func NewService(redisClient *redis.Client, engine *membership.Engine, log *logger.Logger) Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{redis: redisClient, engine: engine, log: log}
}

func (s *service) GetTier(ctx context.Context, clubID, userID string) (*membership.TierConfig, error) {
	tier, err := s.current(ctx, clubID, userID)
	if err != nil {
		return nil, err
	}
	cfg, _ := s.engine.Config(tier)
	return &cfg, nil
}

// current falls back to the entry tier for fans who never subscribed
func (s *service) current(ctx context.Context, clubID, userID string) (membership.Tier, error) {
	val, err := s.redis.Get(ctx, constants.BuildMembershipTierKey(clubID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return membership.TierFan, nil
		}
		return "", fmt.Errorf("failed to read tier: %w", err)
	}
	tier := membership.Tier(val)
	if !s.engine.Known(tier) {
		return membership.TierFan, nil
	}
	return tier, nil
}

func (s *service) SetTier(ctx context.Context, clubID, userID string, tier membership.Tier) (*membership.TierConfig, error) {
	tier = membership.Tier(strings.ToLower(strings.TrimSpace(string(tier))))
	cfg, ok := s.engine.Config(tier)
	if !ok {
		return nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("unknown tier %q", tier))
	}

	from, err := s.current(ctx, clubID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, constants.BuildMembershipTierKey(clubID, userID), string(tier), 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to store tier: %w", err)
	}

	if from != tier {
		s.log.LogTierChanged(ctx, from.String(), tier.String())
	}
	return &cfg, nil
}
