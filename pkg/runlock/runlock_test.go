package runlock_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/finalert/pkg/clock"
	"github.com/ogulcanaydogan/finalert/pkg/runlock"
	"github.com/ogulcanaydogan/finalert/pkg/storage/storagetest"
)

func TestSQLLocker_ExcludesSecondHolder(t *testing.T) {
	store := storagetest.NewStore(t)
	clk := clock.NewFake(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	l := runlock.NewSQLLocker(store, clk)
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "check-alerts", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = l.TryLock(ctx, "check-alerts", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	clk.Advance(2 * time.Minute)
	second, ok, err := l.TryLock(ctx, "check-alerts", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, token, second)

	// The expired holder must not release the new lease.
	require.NoError(t, l.Release(ctx, "check-alerts", token))
	_, ok, err = l.TryLock(ctx, "check-alerts", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "check-alerts", second))
	_, ok, err = l.TryLock(ctx, "check-alerts", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLLocker_Validation(t *testing.T) {
	l := runlock.NewSQLLocker(storagetest.NewStore(t), nil)

	_, _, err := l.TryLock(context.Background(), "", time.Minute)
	assert.Error(t, err)
	_, _, err = l.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
	assert.NoError(t, l.Release(context.Background(), "k", ""))
}

func TestNoop(t *testing.T) {
	var l runlock.Locker = runlock.Noop{}
	for i := 0; i < 2; i++ {
		_, ok, err := l.TryLock(context.Background(), "k", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.NoError(t, l.Release(context.Background(), "k", "noop"))
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("FINALERT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FINALERT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	l := runlock.NewRedisLocker(client, fmt.Sprintf("finalert-test:%d:", time.Now().UnixNano()))

	token, ok, err := l.TryLock(ctx, "check-alerts", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "check-alerts", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "check-alerts", "someone-else"))
	_, ok, err = l.TryLock(ctx, "check-alerts", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "check-alerts", token))
	_, ok, err = l.TryLock(ctx, "check-alerts", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_NilClient(t *testing.T) {
	var l *runlock.RedisLocker
	_, _, err := l.TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
}
