package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	b := NewCircuitBreaker(2, 5*time.Second, 1)

	now := time.Date(2025, 3, 22, 19, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open trial request to pass, got %v", err)
	}
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected half-open state, got %s", state)
	}

	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open trial request, got %s", state)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreakerFromConfig(BreakerConfig{Enabled: true, Failures: 1, Cooldown: time.Second})

	now := time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	if snap := b.Snapshot(); snap.State != CircuitStateOpen || snap.OpenedAt == nil {
		t.Fatalf("expected open snapshot with timestamp, got %+v", snap)
	}

	now = now.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open trial request, got %v", err)
	}
	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected breaker to reopen after failed trial request, got %v", err)
	}
}

func TestCircuitBreaker_DisabledIsNil(t *testing.T) {
	b := NewCircuitBreakerFromConfig(BreakerConfig{Enabled: false})
	if b != nil {
		t.Fatalf("expected nil breaker when disabled")
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("nil breaker must allow, got %v", err)
	}
	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("nil breaker must report closed, got %s", state)
	}
}

func TestBreakerConfig_Defaults(t *testing.T) {
	t.Parallel()

	b := NewCircuitBreakerFromConfig(BreakerConfig{Enabled: true})
	if b.failureThreshold != defaultBreakerFailures || b.openTimeout != defaultBreakerCooldown || b.halfOpenMaxReq != defaultBreakerTrials {
		t.Fatalf("unexpected defaults: failures=%d cooldown=%s trials=%d", b.failureThreshold, b.openTimeout, b.halfOpenMaxReq)
	}
}

func TestBreakerConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     BreakerConfig
		wantErr bool
	}{
		{name: "zero values use defaults", cfg: BreakerConfig{Enabled: true}},
		{name: "explicit", cfg: BreakerConfig{Enabled: true, Failures: 3, Cooldown: time.Minute, Trials: 1}},
		{name: "negative failures", cfg: BreakerConfig{Failures: -1}, wantErr: true},
		{name: "negative cooldown", cfg: BreakerConfig{Cooldown: -time.Second}, wantErr: true},
		{name: "negative trials", cfg: BreakerConfig{Trials: -2}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate()=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}
}
