package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"fanclub/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Seats []string `json:"seats"`
}

func newTestService(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(client, logger.Discard()), mr
}

func TestGetMiss(t *testing.T) {
	svc, _ := newTestService(t)

	var got snapshot
	err := svc.Get(context.Background(), "nope", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestGetOrSetFetchesOnce(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return snapshot{Seats: []string{"A1"}}, nil
	}

	var first, second snapshot
	require.NoError(t, svc.GetOrSet(ctx, "availability:ev-1", time.Minute, fetch, &first))
	require.NoError(t, svc.GetOrSet(ctx, "availability:ev-1", time.Minute, fetch, &second))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"A1"}, second.Seats)
	assert.True(t, mr.Exists("availability:ev-1"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, svc.GetOrSet(ctx, "availability:ev-1", time.Minute, fetch, &second))
	assert.Equal(t, 2, calls)
}

func TestGetOrSetPropagatesFetchError(t *testing.T) {
	svc, mr := newTestService(t)
	boom := errors.New("db down")

	var got snapshot
	err := svc.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) { return nil, boom }, &got)

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestDeletePattern(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "availability:ev-1", snapshot{}, time.Minute))
	require.NoError(t, svc.Set(ctx, "availability:ev-2", snapshot{}, time.Minute))
	require.NoError(t, svc.Set(ctx, "tier:u1", "GOLD", time.Minute))

	require.NoError(t, svc.DeletePattern(ctx, "availability:*"))

	assert.False(t, mr.Exists("availability:ev-1"))
	assert.False(t, mr.Exists("availability:ev-2"))
	assert.True(t, mr.Exists("tier:u1"))
}
