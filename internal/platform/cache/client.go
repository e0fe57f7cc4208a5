package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
	"github.com/riskibarqy/cricket-predictor/internal/platform/resilience"
)

var (
	// ErrUpstreamUnavailable means the fetch failed and nothing was cached to
	// fall back on. Callers may retry.
	ErrUpstreamUnavailable = crerr.New("upstream unavailable")
	// ErrFetchTimeout means the caller stopped waiting before the coalesced
	// fetch finished and no cached value existed.
	ErrFetchTimeout = crerr.New("upstream fetch timed out")
)

type Source string

const (
	SourceHit           Source = "hit"
	SourceFetched       Source = "fetched"
	SourceStaleFallback Source = "stale_fallback"
	SourceRevalidating  Source = "stale_revalidating"
)

// Result is a served value plus its provenance.
type Result struct {
	Value       []byte
	Source      Source
	Age         time.Duration
	Fresh       bool
	StaleServed bool
	Shared      bool
	// FetchErr is the refresh failure that caused a stale fallback.
	FetchErr error
}

type Fetcher func(ctx context.Context) ([]byte, error)

type ClientConfig struct {
	Enabled   bool
	Namespace string
	Version   string
	// FetchTimeout bounds how long a caller waits on a fetch. The fetch
	// itself keeps running past it.
	FetchTimeout time.Duration
	// CallTimeout bounds the detached fetch. Zero means four times
	// FetchTimeout, or unbounded when FetchTimeout is zero too.
	CallTimeout    time.Duration
	RefreshWorkers int
	FlightShards   int
}

// Client combines a Backend with per-key fetch coalescing. One instance is
// built per process and passed to whatever needs cached upstream data.
type Client struct {
	backend      Backend
	fetchTimeout time.Duration
	flight       *resilience.SingleFlight
	refresh      *ants.Pool
	observer     Observer
	logger       *logging.Logger
	gens         *GenerationClock
	prefix       string
	enabled      bool
	now          func() time.Time
	counters     counters
}

type ClientOption func(*Client)

func WithObserver(observer Observer) ClientOption {
	return func(c *Client) {
		if observer != nil {
			c.observer = observer
		}
	}
}

func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(backend Backend, cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("cache backend is required")
	}

	if cfg.FetchTimeout < 0 || cfg.CallTimeout < 0 {
		return nil, fmt.Errorf("cache timeouts must not be negative")
	}
	callTimeout := cfg.CallTimeout
	if callTimeout == 0 {
		callTimeout = 4 * cfg.FetchTimeout
	}

	workers := cfg.RefreshWorkers
	if workers < 1 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create refresh pool: %w", err)
	}

	c := &Client{
		backend:      backend,
		fetchTimeout: cfg.FetchTimeout,
		flight:       resilience.NewSingleFlight(cfg.FlightShards, callTimeout),
		refresh:      pool,
		observer:     nopObserver{},
		logger:       logging.Default(),
		gens:         NewGenerationClock(),
		prefix:       namespacePrefix(cfg.Namespace, cfg.Version),
		enabled:      cfg.Enabled,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gens.now = c.now
	return c, nil
}

func namespacePrefix(namespace, version string) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{namespace, version} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ":") + ":"
}

func (c *Client) fullKey(key string) string {
	return c.prefix + key
}

// GetOrFetch serves a fresh cached value, or runs fetch once for all
// concurrent callers of key. When the fetch fails and an older value is
// retained, that value is served with StaleServed set.
func (c *Client) GetOrFetch(ctx context.Context, key string, tier Tier, fetch Fetcher) (Result, error) {
	full := c.fullKey(key)
	cached, ok := c.lookup(ctx, full)
	now := c.now()
	if ok && cached.Fresh(now) {
		return c.hit(ctx, tier, cached, now), nil
	}

	c.miss(ctx, tier)
	return c.fetch(ctx, full, tier, fetch, cached, ok)
}

// StaleWhileRevalidate behaves like GetOrFetch, except a value inside its
// soft window is served immediately while a background refresh runs.
func (c *Client) StaleWhileRevalidate(ctx context.Context, key string, tier Tier, fetch Fetcher) (Result, error) {
	full := c.fullKey(key)
	cached, ok := c.lookup(ctx, full)
	now := c.now()
	if ok {
		switch cached.State(now) {
		case StateFresh:
			return c.hit(ctx, tier, cached, now), nil
		case StateRevalidatable:
			c.revalidate(ctx, full, tier, fetch)
			age := cached.Age(now)
			c.stale(ctx, tier, age, SourceRevalidating)
			return Result{
				Value:       cached.Value,
				Source:      SourceRevalidating,
				Age:         age,
				StaleServed: true,
			}, nil
		}
	}

	c.miss(ctx, tier)
	return c.fetch(ctx, full, tier, fetch, cached, ok)
}

// Peek returns the retained entry for key without fetching.
func (c *Client) Peek(ctx context.Context, key string) (Entry, bool) {
	return c.lookup(ctx, c.fullKey(key))
}

func (c *Client) Invalidate(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, c.fullKey(key))
}

func (c *Client) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	return c.backend.DeletePrefix(ctx, c.fullKey(prefix))
}

func (c *Client) Counters() Counters {
	return c.counters.snapshot()
}

// Close stops background refreshes and releases the backend.
func (c *Client) Close() error {
	c.refresh.Release()
	return c.backend.Close()
}

func (c *Client) lookup(ctx context.Context, full string) (Entry, bool) {
	if !c.enabled {
		return Entry{}, false
	}
	entry, ok, err := c.backend.Get(ctx, full)
	if err != nil {
		c.logger.WarnContext(ctx, "cache backend read failed", "key", full, "error", err)
		return Entry{}, false
	}
	return entry, ok
}

func (c *Client) hit(ctx context.Context, tier Tier, entry Entry, now time.Time) Result {
	age := entry.Age(now)
	c.counters.hits.Add(1)
	recordHit(ctx)
	c.observer.Hit(ctx, tier.Name, age)
	return Result{Value: entry.Value, Source: SourceHit, Age: age, Fresh: true}
}

func (c *Client) miss(ctx context.Context, tier Tier) {
	c.counters.misses.Add(1)
	recordMiss(ctx)
	c.observer.Miss(ctx, tier.Name)
}

func (c *Client) stale(ctx context.Context, tier Tier, age time.Duration, source Source) {
	c.counters.staleServed.Add(1)
	recordStale(ctx)
	c.observer.StaleServed(ctx, tier.Name, age, source)
}

type fetched struct {
	value     []byte
	createdAt time.Time
	reused    bool
}

func (c *Client) fetch(ctx context.Context, full string, tier Tier, fetch Fetcher, cached Entry, haveCached bool) (Result, error) {
	waitCtx := ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	raw, err, shared := c.flight.Do(waitCtx, full, func(fetchCtx context.Context) (any, error) {
		return c.load(fetchCtx, full, tier, fetch)
	})
	if err == nil {
		out := raw.(fetched)
		source := SourceFetched
		if out.reused {
			source = SourceHit
		}
		return Result{
			Value:  out.value,
			Source: source,
			Age:    c.now().Sub(out.createdAt),
			Fresh:  true,
			Shared: shared,
		}, nil
	}

	if haveCached {
		age := cached.Age(c.now())
		c.stale(ctx, tier, age, SourceStaleFallback)
		c.logger.WarnContext(ctx, "serving stale cache value after fetch failure",
			"key", full,
			"category", tier.Name,
			"age", age.String(),
			"error", err,
		)
		return Result{
			Value:       cached.Value,
			Source:      SourceStaleFallback,
			Age:         age,
			StaleServed: true,
			Shared:      shared,
			FetchErr:    err,
		}, nil
	}

	if errors.Is(err, resilience.ErrWaitAborted) {
		return Result{}, fmt.Errorf("fetch %s: %w: %w", full, ErrFetchTimeout, err)
	}
	return Result{}, fmt.Errorf("fetch %s: %w: %w", full, ErrUpstreamUnavailable, err)
}

// load runs inside the flight. It re-checks the backend first so a caller
// that lost the race with a just-finished fetch does not call upstream again.
func (c *Client) load(ctx context.Context, full string, tier Tier, fetch Fetcher) (fetched, error) {
	if cached, ok := c.lookup(ctx, full); ok && cached.Fresh(c.now()) {
		return fetched{value: cached.Value, createdAt: cached.CreatedAt, reused: true}, nil
	}

	generation := c.gens.Next()
	started := c.now()
	value, err := fetch(ctx)
	latency := c.now().Sub(started)

	if !tier.Derived {
		c.counters.upstreamCalls.Add(1)
		recordUpstream(ctx, latency)
		c.observer.UpstreamCall(ctx, tier.Name, latency, err)
		if err != nil {
			c.counters.upstreamErrors.Add(1)
		}
	}
	if err != nil {
		return fetched{}, err
	}

	createdAt := c.now()
	if c.enabled {
		applied, putErr := c.backend.Put(ctx, Entry{
			Key:        full,
			Value:      value,
			CreatedAt:  createdAt,
			TTL:        tier.TTL,
			SoftTTL:    tier.SoftTTL,
			Generation: generation,
		})
		switch {
		case putErr != nil:
			c.logger.WarnContext(ctx, "cache backend write failed", "key", full, "error", putErr)
		case !applied:
			c.counters.rejectedWrites.Add(1)
			c.logger.DebugContext(ctx, "cache write superseded by newer generation", "key", full, "generation", generation)
		}
	}

	return fetched{value: value, createdAt: createdAt}, nil
}

func (c *Client) revalidate(ctx context.Context, full string, tier Tier, fetch Fetcher) {
	if c.flight.InFlight(full) {
		return
	}

	bg := withoutRequestStats(context.WithoutCancel(ctx))
	err := c.refresh.Submit(func() {
		if _, err, _ := c.flight.Do(bg, full, func(fetchCtx context.Context) (any, error) {
			return c.load(fetchCtx, full, tier, fetch)
		}); err != nil {
			c.logger.WarnContext(bg, "background revalidation failed", "key", full, "category", tier.Name, "error", err)
		}
	})
	if err != nil {
		c.counters.revalidationsDropped.Add(1)
		c.logger.DebugContext(ctx, "background revalidation dropped", "key", full, "error", err)
	}
}
