package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_Do(t *testing.T) {
	var g SingleFlight
	var counter int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	var shared atomic.Int32

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err, isShared := g.Do(context.Background(), "series_schedule:9237", func(context.Context) (any, error) {
				atomic.AddInt32(&counter, 1)
				time.Sleep(20 * time.Millisecond)
				return "ok", nil
			})
			if err != nil {
				t.Errorf("singleflight call failed: %v", err)
				return
			}
			if v != "ok" {
				t.Errorf("unexpected value %v", v)
			}
			if isShared {
				shared.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&counter); got != 1 {
		t.Fatalf("expected function to run once, got %d", got)
	}
	if got := shared.Load(); got != workers-1 {
		t.Fatalf("expected %d shared results, got %d", workers-1, got)
	}
}

func TestSingleFlight_ErrorIsNotRemembered(t *testing.T) {
	g := NewSingleFlight(4, 0)
	boom := errors.New("upstream down")
	var calls atomic.Int32

	_, err, _ := g.Do(context.Background(), "k", func(context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	v, err, _ := g.Do(context.Background(), "k", func(context.Context) (any, error) {
		calls.Add(1)
		return 42, nil
	})
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected fresh result 42, got %v", v)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 invocations, got %d", got)
	}
	if g.InFlight("k") {
		t.Fatalf("registration should be cleared after completion")
	}
}

func TestSingleFlight_CallerTimeoutLeavesFetchRunning(t *testing.T) {
	g := NewSingleFlight(4, 0)
	release := make(chan struct{})
	finished := make(chan any, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err, _ := g.Do(ctx, "live_overs:1", func(fetchCtx context.Context) (any, error) {
		<-release
		if fetchCtx.Err() != nil {
			finished <- fetchCtx.Err()
			return nil, fetchCtx.Err()
		}
		finished <- "done"
		return "done", nil
	})
	if !errors.Is(err, ErrWaitAborted) {
		t.Fatalf("expected wait aborted error, got %v", err)
	}
	if !g.InFlight("live_overs:1") {
		t.Fatalf("fetch should still be registered after caller timeout")
	}

	close(release)
	select {
	case got := <-finished:
		if got != "done" {
			t.Fatalf("detached fetch saw cancellation: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("detached fetch did not finish")
	}
}

func TestSingleFlight_PanicBecomesError(t *testing.T) {
	g := NewSingleFlight(1, 0)

	_, err, _ := g.Do(context.Background(), "k", func(context.Context) (any, error) {
		panic("bad payload")
	})
	if err == nil {
		t.Fatalf("expected error from panicking call")
	}
	if g.InFlight("k") {
		t.Fatalf("registration should be cleared after panic")
	}
}
