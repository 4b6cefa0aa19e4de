package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fanclub/internal/apiclient"
	"fanclub/internal/cart"
	"fanclub/internal/checkout"
	"fanclub/internal/membership"
	"fanclub/internal/seats"
	"fanclub/internal/shared/apperr"
	"fanclub/internal/shared/config"
	"fanclub/internal/shared/database"
	"fanclub/internal/shared/middleware"
	"fanclub/internal/storefront/orders"
	"fanclub/pkg/logger"
	"fanclub/pkg/retry"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	cfg    *config.Config
	mr     *miniredis.Miniredis
	db     *database.DB
	server *httptest.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sqlDB, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(sqlDB))
	t.Cleanup(func() {
		if raw, err := sqlDB.DB(); err == nil {
			_ = raw.Close()
		}
	})

	repo := orders.NewRepository(sqlDB)
	require.NoError(t, repo.UpsertCatalogEntries(context.Background(), []orders.CatalogEntry{
		{RefID: "tt-derby", Type: orders.ItemTypeTicket, Name: "Derby", PriceCents: 4500, EventID: "ev-1"},
		{RefID: "mer-scarf", Type: orders.ItemTypeProduct, Name: "Scarf", PriceCents: 1500},
	}))

	cfg := &config.Config{
		APIPrefix:  "/api",
		APIVersion: "v1",
		Redis:      config.RedisConfig{SeatHoldTTL: 10 * time.Minute, AvailabilityTTL: 5 * time.Second},
		JWT:        config.JWTConfig{Secret: "test-secret", JWTExpiresIn: time.Hour},
	}
	db := &database.DB{SQL: sqlDB, Redis: rdb}

	engine := gin.New()
	NewRouter(cfg, db, nil, orders.NoopPublisher{}, logger.Discard()).SetupRoutes(engine)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &stack{cfg: cfg, mr: mr, db: db, server: srv}
}

func (s *stack) client(t *testing.T, userID string) *apiclient.Client {
	t.Helper()
	token, err := middleware.IssueAccessToken(s.cfg, userID, "club-1", userID+"@club.test")
	require.NoError(t, err)

	c, err := apiclient.New(apiclient.Config{
		BaseURL:     s.server.URL + "/api/v1",
		Credentials: apiclient.StaticCredentials{Token: token, Club: "club-1"},
		Retry:       retry.Policy{MaxAttempts: 2, Delay: time.Millisecond, Retryable: apperr.IsRetryable},
		Logger:      logger.Discard(),
	})
	require.NoError(t, err)
	return c
}

func TestHealthRoutes(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.server.URL + "/api/v1/events/ev-1/availability")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckoutFlowEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	c := s.client(t, "u1")

	session := seats.NewHoldManager(c, seats.Options{Logger: logger.Discard()})
	hold, err := session.Acquire(ctx, "ev-1", []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, seats.StateHeld, session.State())

	avail, err := c.GetAvailability(ctx, "ev-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, avail.Held)

	store := cart.NewStore()
	store.AddItem(cart.NewTicketLine("derby", "tt-derby", "Derby", 4500, 2, hold.SeatIDs...))
	store.AddItem(cart.NewProductLine("scarf", "", "mer-scarf", "Scarf", 1500, 1))

	coord := checkout.NewCoordinator(c, retry.Never(), logger.Discard())
	conf, err := coord.Submit(ctx, checkout.Submission{
		Cart:       store,
		BuyerEmail: "u1@club.test",
		ClubID:     "club-1",
		Hold:       session,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, conf.OrderID)
	assert.False(t, conf.Replayed)
	assert.True(t, store.IsEmpty())
	assert.Equal(t, seats.StateReleased, session.State())

	avail, err = c.GetAvailability(ctx, "ev-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, avail.Taken)
	assert.Empty(t, avail.Held)
}

func TestCheckoutReplayReturnsSameOrder(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	c := s.client(t, "u1")

	req := checkout.Request{
		ClubID:         "club-1",
		Email:          "u1@club.test",
		Items:          []checkout.Item{{Type: "PRODUCT", RefID: "mer-scarf", Quantity: 2}},
		IdempotencyKey: checkout.NewAttempt().Key(),
	}

	first, err := c.SubmitCheckout(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := c.SubmitCheckout(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)

	// same key, different body
	req.Items[0].Quantity = 3
	_, err = c.SubmitCheckout(ctx, req)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

// lossySubmitter forwards to the store but reports its first success as a
// transport failure, as if the response had been lost on the way back.
type lossySubmitter struct {
	next    checkout.Submitter
	calls   int
	dropped *checkout.Confirmation
}

func (l *lossySubmitter) SubmitCheckout(ctx context.Context, req checkout.Request) (checkout.Confirmation, error) {
	l.calls++
	conf, err := l.next.SubmitCheckout(ctx, req)
	if err == nil && l.dropped == nil {
		l.dropped = &conf
		return checkout.Confirmation{}, apperr.ErrNetwork
	}
	return conf, err
}

func TestCheckoutRetryAfterLostResponse(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	c := s.client(t, "u1")

	session := seats.NewHoldManager(c, seats.Options{Logger: logger.Discard()})
	hold, err := session.Acquire(ctx, "ev-1", []string{"C1"})
	require.NoError(t, err)

	store := cart.NewStore()
	store.AddItem(cart.NewTicketLine("derby", "tt-derby", "Derby", 4500, 1, hold.SeatIDs...))

	lossy := &lossySubmitter{next: c}
	coord := checkout.NewCoordinator(lossy, retry.Never(), logger.Discard())
	sub := checkout.Submission{
		Cart:       store,
		BuyerEmail: "u1@club.test",
		ClubID:     "club-1",
		Hold:       session,
		Attempt:    checkout.NewAttempt(),
	}

	_, err = coord.Submit(ctx, sub)
	require.True(t, errors.Is(err, apperr.ErrNetwork))
	require.NotNil(t, lossy.dropped)
	assert.Equal(t, 1, store.Count())

	// the order consumed the hold, so the session learns it is gone
	_, err = session.Refresh(ctx, hold.Token)
	assert.Equal(t, apperr.CodeHoldExpired, apperr.CodeOf(err))
	assert.Equal(t, seats.StateExpired, session.State())

	conf, err := coord.Submit(ctx, sub)
	require.NoError(t, err)
	assert.True(t, conf.Replayed)
	assert.Equal(t, lossy.dropped.OrderID, conf.OrderID)
	assert.Equal(t, 2, lossy.calls)
	assert.True(t, store.IsEmpty())

	avail, err := c.GetAvailability(ctx, "ev-1")
	require.NoError(t, err)
	assert.Contains(t, avail.Taken, "C1")
}

func TestHoldConflictAndExpiry(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	alice := s.client(t, "alice")
	bob := s.client(t, "bob")

	grant, err := alice.HoldSeats(ctx, "ev-1", []string{"B1", "B2"}, "")
	require.NoError(t, err)
	assert.Equal(t, 600, grant.TTLSeconds)

	_, err = bob.HoldSeats(ctx, "ev-1", []string{"B2", "B3"}, "")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.CodeConflict, appErr.Code)
	assert.Equal(t, []string{"B2"}, appErr.SeatIDs)

	s.mr.FastForward(11 * time.Minute)

	_, err = alice.RefreshHold(ctx, grant.Token)
	assert.Equal(t, apperr.CodeHoldExpired, apperr.CodeOf(err))

	_, err = bob.HoldSeats(ctx, "ev-1", []string{"B2", "B3"}, "")
	assert.NoError(t, err)
}

func TestMembershipRoundTrip(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	c := s.client(t, "u1")

	tier, err := c.GetTier(ctx)
	require.NoError(t, err)
	assert.Equal(t, membership.TierFan, tier)

	require.NoError(t, c.ApplyTier(ctx, membership.TierGold))

	tier, err = c.GetTier(ctx)
	require.NoError(t, err)
	assert.Equal(t, membership.TierGold, tier)
}
