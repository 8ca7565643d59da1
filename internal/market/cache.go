package market

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/types"
)

// SnapshotStore keeps serialized snapshots for a bounded time. A miss is
// reported as (nil, false, nil); errors are reserved for a broken store.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Cached serves snapshots from store when a fresh copy exists and falls back
// to the wrapped provider otherwise. Store failures are logged and never fail
// a fetch.
type Cached struct {
	provider interfaces.MarketDataProvider
	store    SnapshotStore
	ttl      time.Duration
}

var _ interfaces.MarketDataProvider = (*Cached)(nil)

func NewCached(provider interfaces.MarketDataProvider, store SnapshotStore, ttl time.Duration) *Cached {
	return &Cached{provider: provider, store: store, ttl: ttl}
}

func (c *Cached) Name() string { return c.provider.Name() }

func (c *Cached) FetchSnapshot(ctx context.Context, ticker string) (*types.MarketSnapshot, error) {
	key := cacheKey(c.provider.Name(), ticker)

	data, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn(ctx, "Snapshot cache read failed", "ticker", ticker, "error", err)
	case ok:
		var snap types.MarketSnapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			logger.Debug(ctx, "Snapshot cache hit", "ticker", ticker, "provider", snap.Provider)
			return &snap, nil
		}
		logger.Warn(ctx, "Discarding unreadable cached snapshot", "ticker", ticker)
	}

	snap, err := c.provider.FetchSnapshot(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snap); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			logger.Warn(ctx, "Snapshot cache write failed", "ticker", ticker, "error", err)
		}
	}
	return snap, nil
}

func cacheKey(provider, ticker string) string {
	return "stockiq:snapshot:" + provider + ":" + strings.ToUpper(ticker)
}

// RedisStore keeps snapshots in Redis with a per-key expiry.
type RedisStore struct {
	client redis.UniversalClient
}

var _ SnapshotStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// FileStore keeps one JSON file per key under dir. Expiry is judged from the
// stored timestamp.
type FileStore struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

var _ SnapshotStore = (*FileStore)(nil)

type fileEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join("cache", "snapshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry fileEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, nil
	}
	if entry.Key != key || (!entry.ExpiresAt.IsZero() && s.now().After(entry.ExpiresAt)) {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (s *FileStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := fileEntry{Key: key, Data: data, StoredAt: now}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(key), raw, 0o644)
}

// Prune removes expired entries and returns how many were deleted.
func (s *FileStore) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	now := s.now()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		raw, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var entry fileEntry
		if json.Unmarshal(raw, &entry) != nil || (!entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt)) {
			if os.Remove(p) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%x.json", md5.Sum([]byte(key))))
}
