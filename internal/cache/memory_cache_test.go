package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type samplePayload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(Options{}, zap.NewNop())

	c.Set("price:test:1", samplePayload{Name: "WETH", Value: 3021.5}, time.Minute)

	var got samplePayload
	require.True(t, c.Get("price:test:1", &got))
	assert.Equal(t, "WETH", got.Name)
	assert.Equal(t, 3021.5, got.Value)
}

func TestMemoryCacheMissOnUnknownKey(t *testing.T) {
	c := NewMemoryCache(Options{}, zap.NewNop())

	var got samplePayload
	assert.False(t, c.Get("price:test:missing", &got))
}

func TestMemoryCacheExpiresByTTL(t *testing.T) {
	c := NewMemoryCache(Options{}, zap.NewNop())

	c.Set("price:test:1", samplePayload{Name: "WETH"}, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	var got samplePayload
	assert.False(t, c.Get("price:test:1", &got), "entry past its TTL must read as absent")
}

func TestMemoryCacheEntryAtExactTTLBoundaryIsAbsent(t *testing.T) {
	c := NewMemoryCache(Options{}, zap.NewNop())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("price:test:1", samplePayload{Name: "WETH"}, time.Minute)

	var got samplePayload
	c.now = func() time.Time { return base.Add(time.Minute - time.Nanosecond) }
	assert.True(t, c.Get("price:test:1", &got), "entry just inside its TTL is live")

	c.now = func() time.Time { return base.Add(time.Minute) }
	assert.False(t, c.Get("price:test:1", &got), "entry exactly at its TTL reads as absent")
}

func TestMemoryCacheOverwriteRefreshesEntry(t *testing.T) {
	c := NewMemoryCache(Options{}, zap.NewNop())

	c.Set("price:test:1", samplePayload{Value: 1}, time.Minute)
	c.Set("price:test:1", samplePayload{Value: 2}, time.Minute)

	var got samplePayload
	require.True(t, c.Get("price:test:1", &got))
	assert.Equal(t, 2.0, got.Value)
}

func TestMemoryCacheStoresValueCopies(t *testing.T) {
	c := NewMemoryCache(Options{}, zap.NewNop())

	original := &samplePayload{Name: "WETH", Value: 1}
	c.Set("price:test:1", original, time.Minute)
	original.Value = 999

	var got samplePayload
	require.True(t, c.Get("price:test:1", &got))
	assert.Equal(t, 1.0, got.Value, "mutating the caller's value must not affect the stored entry")
}

func TestMemoryCacheSnapshotSurvivesRestart(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "cache.json")

	first := NewMemoryCache(Options{SnapshotPath: snapshotPath}, zap.NewNop())
	first.Set("price:test:1", samplePayload{Name: "WETH", Value: 3021.5}, time.Hour)
	first.Set("price:test:expired", samplePayload{Name: "OLD"}, time.Nanosecond)
	first.saveSnapshot()

	second := NewMemoryCache(Options{SnapshotPath: snapshotPath}, zap.NewNop())

	var got samplePayload
	require.True(t, second.Get("price:test:1", &got), "live entry must survive the reload")
	assert.Equal(t, "WETH", got.Name)

	var gone samplePayload
	assert.False(t, second.Get("price:test:expired", &gone), "expired entry must not be restored")
}

func TestMemoryCacheStopWritesFinalSnapshot(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "cache.json")

	c := NewMemoryCache(Options{SnapshotPath: snapshotPath, SnapshotInterval: time.Hour}, zap.NewNop())
	c.StartSnapshotting()
	c.Set("price:test:1", samplePayload{Name: "WETH"}, time.Hour)
	c.Stop()

	reloaded := NewMemoryCache(Options{SnapshotPath: snapshotPath}, zap.NewNop())
	var got samplePayload
	assert.True(t, reloaded.Get("price:test:1", &got))
}
