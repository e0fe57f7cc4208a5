package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultStoreShards = 64

// Backend is the TTL store contract shared by the in-memory and redis stores.
// Put rejects an entry whose generation is older than the stored one and
// reports whether the write was applied.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) (bool, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

type storeShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// MemoryStore keeps entries in a fixed set of shards. Each shard owns its
// lock, so lookups for unrelated keys do not contend.
type MemoryStore struct {
	shards    []*storeShard
	retention time.Duration
	now       func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type MemoryStoreOption func(*MemoryStore)

func WithShards(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shards = newStoreShards(n)
		}
	}
}

func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore builds a store that retains expired entries for retention
// past their soft window so they can back a failed refresh.
func NewMemoryStore(retention time.Duration, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		shards:    newStoreShards(defaultStoreShards),
		retention: retention,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newStoreShards(n int) []*storeShard {
	out := make([]*storeShard, n)
	for i := range out {
		out[i] = &storeShard{entries: make(map[string]Entry)}
	}
	return out
}

func (s *MemoryStore) shard(key string) *storeShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, nil
	}

	sh := s.shard(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}

	now := s.now()
	if e.reclaimable(now, s.retention) {
		sh.mu.Lock()
		if cur, ok := sh.entries[key]; ok && cur.Generation == e.Generation {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()
		return Entry{}, false, nil
	}

	return e, true, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) (bool, error) {
	if entry.Key == "" {
		return false, nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	sh := s.shard(entry.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if cur, ok := sh.entries[entry.Key]; ok && cur.Generation > entry.Generation {
		return false, nil
	}
	sh.entries[entry.Key] = entry
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}

	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, nil
	}

	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key := range sh.entries {
			if strings.HasPrefix(key, prefix) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len counts retained entries, fresh or not.
func (s *MemoryStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}

// Sweep drops entries past their retention horizon and returns how many
// were removed. Shards are visited one at a time.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.reclaimable(now, s.retention) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx ends or Close is called.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 || s.done != nil {
		return
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				removed := s.Sweep()
				if onSweep != nil && removed > 0 {
					onSweep(removed)
				}
			}
		}
	}()
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.done != nil {
			<-s.done
		}
	})
	return nil
}
