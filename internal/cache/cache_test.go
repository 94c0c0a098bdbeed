package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/natijti/internal/core"
)

// exercise runs the contract every core.Cache backend must meet.
func exercise(t *testing.T, c core.Cache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "natijti-test:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "natijti-test:k", []byte(`{"total":3}`), time.Minute))
	got, ok, err := c.Get(ctx, "natijti-test:k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"total":3}`, string(got))

	require.NoError(t, c.Set(ctx, "natijti-test:k", []byte("v2"), time.Minute))
	got, _, _ = c.Get(ctx, "natijti-test:k")
	assert.Equal(t, "v2", string(got))

	require.NoError(t, c.Delete(ctx, "natijti-test:k"))
	_, ok, err = c.Get(ctx, "natijti-test:k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "natijti-test:never-set"))
}

func TestMemory_Contract(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 7, 20, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "long", []byte("b"), time.Hour))
	require.NoError(t, m.Set(ctx, "forever", []byte("c"), 0))

	now = now.Add(2 * time.Minute)
	_, ok, _ := m.Get(ctx, "short")
	assert.False(t, ok, "expired entry served")
	_, ok, _ = m.Get(ctx, "long")
	assert.True(t, ok)

	now = now.Add(24 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v, 0))
	v[0] = 'x'

	got, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemory_RunSweeperStops(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "http://not-redis")
	assert.Error(t, err)
}

func TestRedis_Contract(t *testing.T) {
	url := os.Getenv("NATIJTI_TEST_REDIS_URL")
	if url == "" {
		t.Skip("NATIJTI_TEST_REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), url)
	require.NoError(t, err)
	defer r.Close()
	exercise(t, r)
}
