package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fanclub/internal/shared/apperr"
	"fanclub/internal/storefront/holds"
	"fanclub/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type mockHolds struct {
	mock.Mock
}

func (m *mockHolds) VerifyHold(ctx context.Context, userID, token string, seatIDs []string) (*holds.HoldDetails, error) {
	args := m.Called(ctx, userID, token, seatIDs)
	if d := args.Get(0); d != nil {
		return d.(*holds.HoldDetails), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockHolds) ConsumeHold(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type recordingPublisher struct {
	published []*Order
	err       error
}

func (p *recordingPublisher) PublishOrderConfirmed(ctx context.Context, order *Order) error {
	p.published = append(p.published, order)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Order{}, &OrderItem{}, &SoldSeat{}, &CatalogEntry{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fixture struct {
	svc   Service
	repo  Repository
	holds *mockHolds
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := NewRepository(openTestDB(t))
	require.NoError(t, repo.UpsertCatalogEntries(context.Background(), []CatalogEntry{
		{RefID: "tt-derby", Type: ItemTypeTicket, Name: "Derby", PriceCents: 4500, EventID: "ev-1"},
		{RefID: "tt-cup", Type: ItemTypeTicket, Name: "Cup tie", PriceCents: 3000, EventID: "ev-2"},
		{RefID: "mer-scarf", Type: ItemTypeProduct, Name: "Scarf", PriceCents: 1500},
	}))

	h := &mockHolds{}
	pub := &recordingPublisher{}
	return &fixture{
		svc:   NewService(repo, h, pub, logger.Discard()),
		repo:  repo,
		holds: h,
		pub:   pub,
	}
}

var fan = Caller{UserID: "u1", ClubID: "club-1"}

func seatedRequest(seatIDs ...string) CheckoutRequest {
	return CheckoutRequest{
		ClubID:    "club-1",
		Email:     "fan@club.test",
		HoldToken: "h1",
		Items: []CheckoutItem{
			{Type: ItemTypeTicket, RefID: "tt-derby", Quantity: len(seatIDs), SeatIDs: seatIDs},
			{Type: ItemTypeProduct, RefID: "mer-scarf", Quantity: 2},
		},
	}
}

func liveHold(seatIDs ...string) *holds.HoldDetails {
	return &holds.HoldDetails{Token: "h1", UserID: "u1", EventID: "ev-1", SeatIDs: seatIDs, TTL: 600}
}

func TestCheckoutCreatesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.holds.On("VerifyHold", mock.Anything, "u1", "h1", []string{"A1", "A2"}).Return(liveHold("A1", "A2"), nil).Once()
	f.holds.On("ConsumeHold", mock.Anything, "h1").Return(nil).Once()

	resp, replayed, err := f.svc.Checkout(ctx, fan, "key-1", seatedRequest("A2", "A1"))

	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "CONFIRMED", resp.Status)
	assert.Equal(t, int64(2*4500+2*1500), resp.TotalCents)
	assert.Equal(t, 2, resp.TotalSeats)

	sold, err := f.repo.SoldSeats(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, sold)

	require.Len(t, f.pub.published, 1)
	assert.Equal(t, resp.OrderID, f.pub.published[0].ID.String())
	f.holds.AssertExpectations(t)
}

func TestCheckoutReplaysSameKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.holds.On("VerifyHold", mock.Anything, "u1", "h1", []string{"A1"}).Return(liveHold("A1"), nil).Once()
	f.holds.On("ConsumeHold", mock.Anything, "h1").Return(nil).Once()

	first, _, err := f.svc.Checkout(ctx, fan, "key-1", seatedRequest("A1"))
	require.NoError(t, err)

	second, replayed, err := f.svc.Checkout(ctx, fan, "key-1", seatedRequest("A1"))
	require.NoError(t, err)

	assert.True(t, replayed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, f.pub.published, 1)
	f.holds.AssertNumberOfCalls(t, "VerifyHold", 1)
}

func TestCheckoutKeyReuseWithDifferentBody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := CheckoutRequest{ClubID: "club-1", Email: "fan@club.test", Items: []CheckoutItem{{Type: ItemTypeProduct, RefID: "mer-scarf", Quantity: 1}}}

	_, _, err := f.svc.Checkout(ctx, fan, "key-1", req)
	require.NoError(t, err)

	req.Items[0].Quantity = 3
	_, _, err = f.svc.Checkout(ctx, fan, "key-1", req)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, _, err = f.svc.Checkout(ctx, Caller{UserID: "u2", ClubID: "club-1"}, "key-1", req)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
}

func TestCheckoutValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		req  CheckoutRequest
		want error
	}{
		{"missing key", "", CheckoutRequest{ClubID: "club-1", Email: "a@b.c", Items: []CheckoutItem{{Type: ItemTypeProduct, RefID: "mer-scarf", Quantity: 1}}}, apperr.ErrValidation},
		{"other club", "k", CheckoutRequest{ClubID: "club-2", Email: "a@b.c", Items: []CheckoutItem{{Type: ItemTypeProduct, RefID: "mer-scarf", Quantity: 1}}}, apperr.ErrValidation},
		{"unknown item", "k", CheckoutRequest{ClubID: "club-1", Email: "a@b.c", Items: []CheckoutItem{{Type: ItemTypeProduct, RefID: "mer-nope", Quantity: 1}}}, apperr.ErrValidation},
		{"type mismatch", "k", CheckoutRequest{ClubID: "club-1", Email: "a@b.c", Items: []CheckoutItem{{Type: ItemTypeTicket, RefID: "mer-scarf", Quantity: 1}}}, apperr.ErrValidation},
		{"product with seats", "k", CheckoutRequest{ClubID: "club-1", Email: "a@b.c", Items: []CheckoutItem{{Type: ItemTypeProduct, RefID: "mer-scarf", Quantity: 1, SeatIDs: []string{"A1"}}}}, apperr.ErrValidation},
		{"seat twice", "k", CheckoutRequest{ClubID: "club-1", Email: "a@b.c", HoldToken: "h1", Items: []CheckoutItem{
			{Type: ItemTypeTicket, RefID: "tt-derby", Quantity: 1, SeatIDs: []string{"A1"}},
			{Type: ItemTypeTicket, RefID: "tt-derby", Quantity: 1, SeatIDs: []string{"A1"}},
		}}, apperr.ErrValidation},
		{"seats without hold", "k", CheckoutRequest{ClubID: "club-1", Email: "a@b.c", Items: []CheckoutItem{{Type: ItemTypeTicket, RefID: "tt-derby", Quantity: 1, SeatIDs: []string{"A1"}}}}, apperr.ErrHoldExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, _, err := f.svc.Checkout(context.Background(), fan, tt.key, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			f.holds.AssertNotCalled(t, "ConsumeHold", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutExpiredHold(t *testing.T) {
	f := newFixture(t)
	f.holds.On("VerifyHold", mock.Anything, "u1", "h1", []string{"A1"}).
		Return(nil, apperr.New(apperr.CodeHoldExpired, "Hold has expired")).Once()

	_, _, err := f.svc.Checkout(context.Background(), fan, "key-1", seatedRequest("A1"))

	assert.True(t, errors.Is(err, apperr.ErrHoldExpired))
	sold, err := f.repo.SoldSeats(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Empty(t, sold)
	assert.Empty(t, f.pub.published)
}

func TestCheckoutTicketForOtherEvent(t *testing.T) {
	f := newFixture(t)
	f.holds.On("VerifyHold", mock.Anything, "u1", "h1", []string{"A1"}).Return(liveHold("A1"), nil).Once()
	req := seatedRequest("A1")
	req.Items[0].RefID = "tt-cup"

	_, _, err := f.svc.Checkout(context.Background(), fan, "key-1", req)

	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCheckoutSoldSeatConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.holds.On("VerifyHold", mock.Anything, "u1", "h1", mock.Anything).Return(liveHold("A1", "A2"), nil)
	f.holds.On("ConsumeHold", mock.Anything, "h1").Return(nil)

	_, _, err := f.svc.Checkout(ctx, fan, "key-1", seatedRequest("A1"))
	require.NoError(t, err)

	_, _, err = f.svc.Checkout(ctx, fan, "key-2", seatedRequest("A1", "A2"))

	require.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)
	assert.Equal(t, []string{"A1"}, apperr.ConflictingSeats(err))
}

func TestCheckoutPublishFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	req := CheckoutRequest{ClubID: "club-1", Email: "fan@club.test", Items: []CheckoutItem{{Type: ItemTypeProduct, RefID: "mer-scarf", Quantity: 1}}}

	resp, _, err := f.svc.Checkout(context.Background(), fan, "key-1", req)
	require.NoError(t, err)

	order, err := f.svc.GetOrder(context.Background(), fan, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), order.TotalCents)
	f.holds.AssertNotCalled(t, "ConsumeHold", mock.Anything, mock.Anything)
}

func TestGetOrderHidesOtherFans(t *testing.T) {
	f := newFixture(t)
	req := CheckoutRequest{ClubID: "club-1", Email: "fan@club.test", Items: []CheckoutItem{{Type: ItemTypeProduct, RefID: "mer-scarf", Quantity: 1}}}
	resp, _, err := f.svc.Checkout(context.Background(), fan, "key-1", req)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(context.Background(), Caller{UserID: "u2", ClubID: "club-1"}, resp.OrderID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.GetOrder(context.Background(), fan, "not-a-uuid")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
