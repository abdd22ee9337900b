package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryTransients_Expiry(t *testing.T) {
	clock := newFakeClock()
	runTransientExpirySuite(t, NewMemoryTransients(clock.Now), clock.Advance)
}

func TestSQLiteTransients_Expiry(t *testing.T) {
	clock := newFakeClock()
	store, cleanup := setupSQLiteStore(t, clock.Now)
	defer cleanup()
	runTransientExpirySuite(t, store, clock.Advance)
}

func TestRedisTransients_Expiry(t *testing.T) {
	transients, mr, cleanup := setupRedisTransients(t)
	defer cleanup()
	runTransientExpirySuite(t, transients, mr.FastForward)
}

func runTransientExpirySuite(t *testing.T, cache TransientCache, advance func(time.Duration)) {
	ctx := context.Background()
	notice := Notice{Code: NoticeConnectionSuccess, Type: NoticeSuccess, Message: "Successfully connected to CiviCRM."}

	require.NoError(t, cache.SetTransient(ctx, TransientConnectionTest, notice, ConnectionTestTTL))
	require.NoError(t, cache.SetTransient(ctx, "forever", "kept", 0))

	var got Notice
	ok, err := cache.GetTransient(ctx, TransientConnectionTest, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, notice, got)

	advance(44 * time.Second)
	ok, err = cache.GetTransient(ctx, TransientConnectionTest, &got)
	require.NoError(t, err)
	assert.True(t, ok)

	advance(2 * time.Second)
	ok, err = cache.GetTransient(ctx, TransientConnectionTest, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	var kept string
	ok, err = cache.GetTransient(ctx, "forever", &kept)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kept", kept)

	require.NoError(t, cache.DeleteTransient(ctx, "forever", "missing"))
	ok, err = cache.GetTransient(ctx, "forever", &kept)
	require.NoError(t, err)
	assert.False(t, ok)
}

func setupRedisTransients(t *testing.T) (*RedisTransients, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	transients := NewRedisTransients(NewRedisCacheFromClient(client, zerolog.Nop()), "civicf7:")

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return transients, mr, cleanup
}

func TestRedisTransients_Prefix(t *testing.T) {
	transients, mr, cleanup := setupRedisTransients(t)
	defer cleanup()

	require.NoError(t, transients.SetTransient(context.Background(), "k", 1, time.Minute))
	assert.True(t, mr.Exists("civicf7:k"))
	assert.Equal(t, time.Minute, mr.TTL("civicf7:k"))
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewRedis(context.Background(), RedisConfig{Addr: mr.Addr(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer cache.Shutdown()
	require.NoError(t, cache.Ping(context.Background()))

	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(context.Background(), RedisConfig{Addr: addr, PingTimeout: time.Second, Logger: zerolog.Nop()})
	require.Error(t, err)
}
