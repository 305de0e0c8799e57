package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var redisNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestRedisStore runs the store against an in-process Redis. Expiry only
// advances through mr.FastForward.
func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client, "test:")
	s.now = func() time.Time { return redisNow }
	require.NoError(t, s.Ping(context.Background()))
	return s, mr
}

func TestRedisStore_Hit_StartsWindowOnFirstHit(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	w, err := s.Hit(ctx, "1.1.1.1/join", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count)
	assert.Equal(t, redisNow.Add(5*time.Minute), w.ResetTime)

	assert.True(t, mr.Exists("test:1.1.1.1/join"))
	assert.Equal(t, 5*time.Minute, mr.TTL("test:1.1.1.1/join"))
}

func TestRedisStore_Hit_WindowIsFixed(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)

	// Later hits neither extend nor restart the window.
	mr.FastForward(20 * time.Second)
	w, err := s.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Count)
	assert.Equal(t, redisNow.Add(40*time.Second), w.ResetTime)

	mr.FastForward(41 * time.Second)
	w, err = s.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count, "expired window starts over")
	assert.Equal(t, redisNow.Add(time.Minute), w.ResetTime)
}

func TestRedisStore_Hit_RepairsKeyWithoutExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)

	// A counter left behind without a TTL must not lock the client out forever.
	require.NoError(t, mr.Set("test:k", "7"))

	w, err := s.Hit(context.Background(), "k", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 8, w.Count)
	assert.Equal(t, redisNow.Add(30*time.Second), w.ResetTime)
	assert.Equal(t, 30*time.Second, mr.TTL("test:k"))
}

func TestRedisStore_Hit_SubMillisecondWindow(t *testing.T) {
	s, mr := newTestRedisStore(t)

	w, err := s.Hit(context.Background(), "k", time.Microsecond)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count)
	assert.Equal(t, time.Millisecond, mr.TTL("test:k"))
}

func TestRedisStore_KeysAreIsolated(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Hit(ctx, "1.1.1.1/join", time.Minute)
		require.NoError(t, err)
	}
	w, err := s.Hit(ctx, "2.2.2.2/join", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count)
}

func TestRedisStore_FixedWindow(t *testing.T) {
	s, mr := newTestRedisStore(t)
	l := New(s, Policy{MaxRequests: 2, Window: time.Minute}, testLogger())
	l.now = func() time.Time { return redisNow }
	ctx := context.Background()

	d, err := l.Check(ctx, "1.1.1.1", "/join")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, _ = l.Check(ctx, "1.1.1.1", "/join")
	assert.True(t, d.Allowed)
	d, _ = l.Check(ctx, "1.1.1.1", "/join")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	mr.FastForward(time.Minute + time.Millisecond)
	d, _ = l.Check(ctx, "1.1.1.1", "/join")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestRedisStore_UnavailableFailsOpen(t *testing.T) {
	s, mr := newTestRedisStore(t)
	l := New(s, Policy{MaxRequests: 1, Window: time.Minute}, testLogger())
	mr.SetError("ERR backend unavailable")

	d, err := l.Check(context.Background(), "1.1.1.1", "/join")
	require.Error(t, err)
	assert.True(t, d.Allowed)

	mr.SetError("")
	_, err = s.Hit(context.Background(), "k", time.Minute)
	assert.NoError(t, err)
}

func TestNewRedisStore_Prefix(t *testing.T) {
	s := NewRedisStore(nil, "  ")
	assert.Equal(t, DefaultRedisPrefix, s.prefix)

	s = NewRedisStore(nil, "app:limits:")
	assert.Equal(t, "app:limits", s.prefix)
}
