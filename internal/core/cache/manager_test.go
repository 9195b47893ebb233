package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(maxSize int, ttl time.Duration) *CacheManager {
	common.InitNopLogger()
	return NewManager(&config.CacheConfig{Enabled: true, Backend: "memory", MaxSize: maxSize, TTL: ttl})
}

func TestManager_SetGet(t *testing.T) {
	m := newTestManager(10, time.Minute)
	defer m.Close()
	ctx := context.Background()

	_, err := m.Get(ctx, "https://example.org/a")
	assert.True(t, errors.Is(err, common.ErrCacheMiss))

	require.NoError(t, m.Set(ctx, "https://example.org/a", []byte(`{"ok":true}`)))
	got, err := m.Get(ctx, "https://example.org/a")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(got))

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}

func TestManager_Expiry(t *testing.T) {
	m := newTestManager(10, time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	time.Sleep(5 * time.Millisecond)

	_, err := m.Get(ctx, "k")
	assert.True(t, errors.Is(err, common.ErrCacheMiss))
}

func TestManager_EvictsLeastUsed(t *testing.T) {
	m := newTestManager(2, time.Minute)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	require.NoError(t, m.Set(ctx, "b", []byte("2")))
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", []byte("3")))

	_, err = m.Get(ctx, "b")
	assert.Error(t, err, "b was used least and should be evicted")
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestNew_Disabled(t *testing.T) {
	common.InitNopLogger()
	c, err := New(&config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, c)
}
