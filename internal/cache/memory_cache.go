package cache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"portfolio_tracker/internal/port"
	"portfolio_tracker/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ port.Cache = (*MemoryCache)(nil)

// entry is the stored shape. Values are kept serialized so readers never
// alias mutable state with writers, and so the durable snapshot is a plain
// JSON round trip.
type entry struct {
	Value     jsoniter.RawMessage `json:"value"`
	WrittenAt time.Time           `json:"writtenAt"`
	TTL       time.Duration       `json:"ttl"`
}

// MemoryCache is the process-wide TTL store. TTL is per call, so prices,
// metadata and collector results share one mechanism with different
// durability. A background janitor sweeps expired entries off the hot
// read/write paths, and an optional snapshot task periodically serializes
// the map to a file for best-effort reload after restart.
type MemoryCache struct {
	store  *gocache.Cache
	logger *zap.Logger

	snapshotPath     string
	snapshotInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	// now is swappable for tests.
	now func() time.Time
}

// Options configures a MemoryCache.
type Options struct {
	// SweepInterval is the janitor cadence for removing expired entries.
	SweepInterval time.Duration
	// SnapshotPath enables durable snapshotting when non-empty.
	SnapshotPath string
	// SnapshotInterval is the persistence cadence; a restart may lose up to
	// one interval of cached entries.
	SnapshotInterval time.Duration
}

// NewMemoryCache creates the cache and, when a snapshot path is configured,
// reloads any previous snapshot. A missing snapshot file is a cold start,
// not an error.
func NewMemoryCache(opts Options, logger *zap.Logger) *MemoryCache {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	c := &MemoryCache{
		store:            gocache.New(gocache.NoExpiration, opts.SweepInterval),
		logger:           logger.Named("Cache"),
		snapshotPath:     opts.SnapshotPath,
		snapshotInterval: opts.SnapshotInterval,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
		now:              time.Now,
	}
	if c.snapshotPath != "" {
		c.reloadSnapshot()
	}
	return c
}

// Get unmarshals the live entry for key into dst. Expired entries and
// never-set keys are both reported as absent.
func (c *MemoryCache) Get(key string, dst any) bool {
	ns := keyNamespace(key)
	obj, found := c.store.Get(key)
	if !found {
		metrics.IncCacheOp(ns, "miss")
		return false
	}
	e, ok := obj.(entry)
	if !ok {
		// Internal shape fault; treat as a miss rather than failing the call.
		c.logger.Warn("unexpected cache entry type", zap.String("key", key))
		metrics.IncCacheOp(ns, "miss")
		return false
	}
	// An entry exactly at its TTL is already expired.
	if e.TTL > 0 && c.now().Sub(e.WrittenAt) >= e.TTL {
		metrics.IncCacheOp(ns, "miss")
		return false
	}
	if err := json.Unmarshal(e.Value, dst); err != nil {
		c.logger.Warn("failed to decode cache entry", zap.String("key", key), zap.Error(err))
		metrics.IncCacheOp(ns, "miss")
		return false
	}
	metrics.IncCacheOp(ns, "hit")
	return true
}

// Set overwrites any prior entry unconditionally with a fresh write time.
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode cache value", zap.String("key", key), zap.Error(err))
		return
	}
	c.store.Set(key, entry{Value: raw, WrittenAt: c.now(), TTL: ttl}, ttl)
}

// ItemCount returns the number of stored entries, expired ones included
// until the next sweep.
func (c *MemoryCache) ItemCount() int {
	return c.store.ItemCount()
}

// StartSnapshotting launches the periodic snapshot task. No-op when no
// snapshot path is configured.
func (c *MemoryCache) StartSnapshotting() {
	if c.snapshotPath == "" || c.snapshotInterval <= 0 {
		close(c.doneCh)
		return
	}
	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(c.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.saveSnapshot()
			case <-c.stopCh:
				c.saveSnapshot()
				return
			}
		}
	}()
}

// Stop halts the snapshot task after a final write. Safe to call more than
// once.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh
}

// saveSnapshot serializes all live entries to the snapshot file. Failures
// are logged and skipped; persistence is best-effort by design.
func (c *MemoryCache) saveSnapshot() {
	items := c.store.Items()
	out := make(map[string]entry, len(items))
	now := c.now()
	for key, item := range items {
		e, ok := item.Object.(entry)
		if !ok {
			continue
		}
		if e.TTL > 0 && now.Sub(e.WrittenAt) >= e.TTL {
			continue
		}
		out[key] = e
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		c.logger.Error("failed to marshal cache snapshot", zap.Error(err))
		return
	}

	tmp := c.snapshotPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.snapshotPath), 0o755); err != nil {
		c.logger.Error("failed to create snapshot directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		c.logger.Error("failed to write cache snapshot", zap.String("path", tmp), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, c.snapshotPath); err != nil {
		c.logger.Error("failed to replace cache snapshot", zap.String("path", c.snapshotPath), zap.Error(err))
		return
	}
	c.logger.Debug("cache snapshot written", zap.Int("entries", len(out)))
}

// reloadSnapshot restores still-live entries from a previous run.
func (c *MemoryCache) reloadSnapshot() {
	raw, err := os.ReadFile(c.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("failed to read cache snapshot", zap.String("path", c.snapshotPath), zap.Error(err))
		}
		return
	}

	var entries map[string]entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.logger.Warn("failed to decode cache snapshot, starting cold", zap.Error(err))
		return
	}

	now := c.now()
	restored := 0
	for key, e := range entries {
		remaining := e.TTL - now.Sub(e.WrittenAt)
		if e.TTL > 0 && remaining <= 0 {
			continue
		}
		c.store.Set(key, e, remaining)
		restored++
	}
	c.logger.Info("cache snapshot restored",
		zap.String("path", c.snapshotPath),
		zap.Int("restored", restored),
		zap.Int("skippedExpired", len(entries)-restored))
}

// keyNamespace extracts the metrics label from a namespaced key, e.g.
// "price:ethereum:0xabc" => "price".
func keyNamespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}
