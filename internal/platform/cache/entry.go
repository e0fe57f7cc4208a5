package cache

import (
	"sync/atomic"
	"time"
)

// Entry is a cached upstream payload. SoftTTL is the window after TTL during
// which the value may be served while a refresh runs in the background.
type Entry struct {
	Key        string
	Value      []byte
	CreatedAt  time.Time
	TTL        time.Duration
	SoftTTL    time.Duration
	Generation uint64
}

type State string

const (
	StateFresh         State = "fresh"
	StateRevalidatable State = "revalidatable"
	StateStale         State = "stale"
)

func (e Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}

func (e Entry) Fresh(now time.Time) bool {
	return e.TTL > 0 && e.Age(now) <= e.TTL
}

func (e Entry) State(now time.Time) State {
	age := e.Age(now)
	switch {
	case e.TTL > 0 && age <= e.TTL:
		return StateFresh
	case e.SoftTTL > 0 && age <= e.TTL+e.SoftTTL:
		return StateRevalidatable
	default:
		return StateStale
	}
}

// reclaimable reports whether the entry outlived its retention horizon.
func (e Entry) reclaimable(now time.Time, retention time.Duration) bool {
	return e.Age(now) > e.TTL+e.SoftTTL+retention
}

// Tier is the freshness policy of one data category.
type Tier struct {
	Name    string
	TTL     time.Duration
	SoftTTL time.Duration
	// Derived tiers are computed from other cached keys. Their fetches are
	// not counted as upstream calls; the reads they make underneath are.
	Derived bool
}

// WithTTL returns a copy of the tier with a different TTL, used for
// date-relative policies such as match lists.
func (t Tier) WithTTL(ttl time.Duration) Tier {
	t.TTL = ttl
	return t
}

// GenerationClock hands out strictly increasing generations anchored to wall
// clock microseconds, so generations from different processes sharing a redis
// backend remain comparable. Values stay below 2^53.
type GenerationClock struct {
	last atomic.Uint64
	now  func() time.Time
}

func NewGenerationClock() *GenerationClock {
	return &GenerationClock{now: time.Now}
}

func (g *GenerationClock) Next() uint64 {
	for {
		prev := g.last.Load()
		next := uint64(g.now().UnixMicro())
		if next <= prev {
			next = prev + 1
		}
		if g.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
