package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	crerr "github.com/cockroachdb/errors"
)

const defaultFlightShards = 32

// ErrWaitAborted is returned to a caller that stopped waiting on a fetch
// because its own context ended. The fetch itself keeps running.
var ErrWaitAborted = crerr.New("singleflight wait aborted")

// SingleFlight deduplicates concurrent calls for the same key.
//
// The function passed to Do runs detached from the callers' cancellation: a
// caller that gives up returns immediately while the fetch completes for the
// benefit of whoever registered a completion hook (usually the cache).
type SingleFlight struct {
	once        sync.Once
	shards      []*flightShard
	callTimeout time.Duration
}

type flightShard struct {
	mu    sync.Mutex
	calls map[string]*call
}

type call struct {
	done chan struct{}
	val  any
	err  error
}

// NewSingleFlight builds a coordinator whose detached calls are bounded by
// callTimeout. A zero timeout leaves calls unbounded.
func NewSingleFlight(shards int, callTimeout time.Duration) *SingleFlight {
	if shards < 1 {
		shards = defaultFlightShards
	}
	g := &SingleFlight{callTimeout: callTimeout}
	g.init(shards)
	return g
}

func (g *SingleFlight) init(n int) {
	g.once.Do(func() {
		g.shards = make([]*flightShard, n)
		for i := range g.shards {
			g.shards[i] = &flightShard{calls: make(map[string]*call)}
		}
	})
}

func (g *SingleFlight) shard(key string) *flightShard {
	g.init(defaultFlightShards)
	return g.shards[xxhash.Sum64String(key)%uint64(len(g.shards))]
}

// Do runs fn once per key at a time. The third return value reports whether
// the result was shared with another caller.
func (g *SingleFlight) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	s := g.shard(key)
	s.mu.Lock()
	if c, ok := s.calls[key]; ok {
		s.mu.Unlock()
		val, err := g.wait(ctx, key, c)
		return val, err, true
	}

	c := &call{done: make(chan struct{})}
	s.calls[key] = c
	s.mu.Unlock()

	go g.run(context.WithoutCancel(ctx), s, key, c, fn)

	val, err := g.wait(ctx, key, c)
	return val, err, false
}

// InFlight reports whether a call for key is currently registered.
func (g *SingleFlight) InFlight(key string) bool {
	s := g.shard(key)
	s.mu.Lock()
	_, ok := s.calls[key]
	s.mu.Unlock()
	return ok
}

func (g *SingleFlight) wait(ctx context.Context, key string, c *call) (any, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return nil, crerr.Wrapf(ErrWaitAborted, "key=%s: %v", key, ctx.Err())
	}
}

func (g *SingleFlight) run(ctx context.Context, s *flightShard, key string, c *call, fn func(context.Context) (any, error)) {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			c.val = nil
			c.err = fmt.Errorf("singleflight call %s panicked: %v", key, r)
		}

		s.mu.Lock()
		delete(s.calls, key)
		s.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn(ctx)
}
