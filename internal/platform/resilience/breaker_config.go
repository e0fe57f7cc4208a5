package resilience

import (
	"time"

	crerr "github.com/cockroachdb/errors"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 15 * time.Second
	defaultBreakerTrials   = 2
)

// BreakerConfig sizes the breaker in front of a rate-limited provider.
type BreakerConfig struct {
	Enabled bool
	// Failures is the run of consecutive transient provider failures that
	// opens the breaker.
	Failures int
	// Cooldown is how long an open breaker rejects calls outright.
	Cooldown time.Duration
	// Trials is how many requests may run while half-open. All of them must
	// succeed before the breaker closes again.
	Trials int
}

// Validate rejects explicit settings the breaker cannot honour. Zero values
// are left for withDefaults to fill.
func (c BreakerConfig) Validate() error {
	if c.Failures < 0 {
		return crerr.Newf("breaker failures must not be negative, got %d", c.Failures)
	}
	if c.Cooldown < 0 {
		return crerr.Newf("breaker cooldown must not be negative, got %s", c.Cooldown)
	}
	if c.Trials < 0 {
		return crerr.Newf("breaker trials must not be negative, got %d", c.Trials)
	}
	return nil
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Failures < 1 {
		c.Failures = defaultBreakerFailures
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultBreakerCooldown
	}
	if c.Trials < 1 {
		c.Trials = defaultBreakerTrials
	}
	return c
}
