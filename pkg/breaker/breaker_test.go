package breaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errWrite = errors.New("write failed")

func fail() error { return errWrite }
func succeed() error { return nil }

func TestInitialState(t *testing.T) {
	b := New(nil)

	if b.State() != StateClosed {
		t.Errorf("expected initial state to be closed, got %s", b.State())
	}
	if b.Name() != "default" {
		t.Errorf("expected default name, got %s", b.Name())
	}
	if b.Stats().TotalRequests != 0 {
		t.Errorf("expected 0 total requests, got %d", b.Stats().TotalRequests)
	}
}

func TestOpensAfterFailures(t *testing.T) {
	b := New(&Config{Name: "journal", FailureThreshold: 3, SuccessThreshold: 2, Timeout: time.Second})

	for i := 0; i < 3; i++ {
		if err := b.Execute(fail); !errors.Is(err, errWrite) {
			t.Fatalf("expected the function's error, got %v", err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("expected function not to run while open")
	}
	if b.Stats().TotalRejected != 1 {
		t.Errorf("expected 1 rejected, got %d", b.Stats().TotalRejected)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(&Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})

	b.Execute(fail)
	b.Execute(succeed)
	b.Execute(fail)

	if b.State() != StateClosed {
		t.Errorf("expected closed since failures were not consecutive, got %s", b.State())
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name      string
		trial     func() error
		threshold int
		want      State
	}{
		{"success closes", succeed, 1, StateClosed},
		{"failure reopens", fail, 1, StateOpen},
		{"needs more successes", succeed, 2, StateHalfOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(&Config{FailureThreshold: 1, SuccessThreshold: tt.threshold, Timeout: 30 * time.Millisecond})
			b.Execute(fail)
			time.Sleep(40 * time.Millisecond)

			b.Execute(tt.trial)
			if b.State() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, b.State())
			}
		})
	}
}

func TestResetAndForceOpen(t *testing.T) {
	b := New(nil)

	b.ForceOpen()
	if !b.IsOpen() {
		t.Fatal("expected open after ForceOpen")
	}
	if err := b.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}

	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", b.State())
	}
	if err := b.Execute(succeed); err != nil {
		t.Errorf("expected no error after reset, got %v", err)
	}
}

func TestConcurrentCallsUnlimited(t *testing.T) {
	b := New(&Config{FailureThreshold: 100, SuccessThreshold: 2, Timeout: time.Second})

	var wg sync.WaitGroup
	var ok int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Execute(func() error {
				time.Sleep(time.Millisecond)
				return nil
			}) == nil {
				atomic.AddInt64(&ok, 1)
			}
		}()
	}
	wg.Wait()

	if ok != 100 {
		t.Errorf("expected 100 successes, got %d", ok)
	}
}

func TestMaxConcurrent(t *testing.T) {
	b := New(&Config{FailureThreshold: 100, SuccessThreshold: 2, Timeout: time.Second, MaxConcurrent: 2})

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Execute(func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started

	rejected := 0
	for i := 0; i < 5; i++ {
		if errors.Is(b.Execute(succeed), ErrTooManyConcurrent) {
			rejected++
		}
	}
	close(release)
	wg.Wait()

	if rejected != 5 {
		t.Errorf("expected 5 rejections, got %d", rejected)
	}
	if b.Stats().Concurrent != 0 {
		t.Errorf("expected no calls in flight, got %d", b.Stats().Concurrent)
	}
}

func TestExecuteContext_CancelledCallerIsNotAFailure(t *testing.T) {
	b := New(&Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	err := b.ExecuteContext(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected breaker to stay closed, got %s", b.State())
	}

	if err := b.ExecuteContext(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected an already cancelled context to be refused, got %v", err)
	}
	if b.Stats().Concurrent != 0 {
		t.Errorf("expected no calls in flight, got %d", b.Stats().Concurrent)
	}
}

func TestOnStateChange(t *testing.T) {
	var mu sync.Mutex
	var changes []string

	b := New(&Config{
		Name:             "journal",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          30 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			changes = append(changes, name+":"+string(from)+"->"+string(to))
			mu.Unlock()
		},
	})

	b.Execute(fail)
	b.Execute(fail)
	time.Sleep(40 * time.Millisecond)
	b.Execute(succeed)
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	want := map[string]bool{
		"journal:closed->open":      true,
		"journal:open->half-open":   true,
		"journal:half-open->closed": true,
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), changes)
	}
	for _, c := range changes {
		if !want[c] {
			t.Errorf("unexpected transition %s", c)
		}
	}
}

func TestStats(t *testing.T) {
	b := New(&Config{Name: "journal", FailureThreshold: 10, SuccessThreshold: 2, Timeout: time.Second})

	for i := 0; i < 5; i++ {
		b.Execute(succeed)
	}
	for i := 0; i < 3; i++ {
		b.Execute(fail)
	}

	stats := b.Stats()
	if stats.Name != "journal" {
		t.Errorf("expected name journal, got %s", stats.Name)
	}
	if stats.TotalRequests != 8 || stats.TotalSuccesses != 5 || stats.TotalFailures != 3 {
		t.Errorf("expected 8/5/3, got %d/%d/%d", stats.TotalRequests, stats.TotalSuccesses, stats.TotalFailures)
	}
	if stats.Failures != 3 {
		t.Errorf("expected 3 current failures, got %d", stats.Failures)
	}
	if stats.State != StateClosed {
		t.Errorf("expected closed, got %s", stats.State)
	}
}
