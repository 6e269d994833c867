// Package breaker protects calls to a dependency that may be down, such as
// the event journal database, by failing fast after repeated errors.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position
type State string

const (
	StateClosed   State = "closed"    // calls flow
	StateOpen     State = "open"      // calls are rejected
	StateHalfOpen State = "half-open" // one trial call at a time
)

var (
	// ErrCircuitOpen is returned without calling the function while open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyConcurrent is returned when MaxConcurrent calls are in flight
	ErrTooManyConcurrent = errors.New("max concurrent requests exceeded")
)

// Config holds breaker configuration
type Config struct {
	// Name identifies the breaker in logs and metrics
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Timeout          time.Duration // time spent open before probing
	MaxConcurrent    int           // 0 = unlimited
	// OnStateChange runs on its own goroutine after every transition
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns defaults suited to a batch writer
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxConcurrent:    10,
	}
}

// Stats is a point-in-time view of the breaker
type Stats struct {
	Name           string `json:"name"`
	State          State  `json:"state"`
	TotalRequests  int64  `json:"total_requests"`
	TotalFailures  int64  `json:"total_failures"`
	TotalSuccesses int64  `json:"total_successes"`
	TotalRejected  int64  `json:"total_rejected"`
	Failures       int    `json:"current_failures"`
	Concurrent     int    `json:"concurrent"`
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	cfg *Config

	mu          sync.RWMutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	concurrent  int

	totalRequests  int64
	totalFailures  int64
	totalSuccesses int64
	totalRejected  int64

	callbacks sync.WaitGroup
}

// New creates a closed breaker; nil config uses DefaultConfig("default")
func New(cfg *Config) *Breaker {
	if cfg == nil {
		cfg = DefaultConfig("default")
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Name returns the configured name
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// Execute runs fn unless the breaker rejects it
func (b *Breaker) Execute(fn func() error) error {
	return b.ExecuteContext(context.Background(), func(context.Context) error { return fn() })
}

// ExecuteContext runs fn with ctx. A call abandoned because ctx was
// cancelled by the caller does not count as a dependency failure.
func (b *Breaker) ExecuteContext(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.acquire(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		b.release()
		return err
	}
	b.done(err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) <= b.cfg.Timeout {
			b.totalRejected++
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.concurrent++
		return nil

	case StateHalfOpen:
		if b.concurrent >= 1 {
			b.totalRejected++
			return ErrCircuitOpen
		}
		b.concurrent++
		return nil
	}

	if b.cfg.MaxConcurrent > 0 && b.concurrent >= b.cfg.MaxConcurrent {
		b.totalRejected++
		return ErrTooManyConcurrent
	}
	b.concurrent++
	return nil
}

func (b *Breaker) release() {
	b.mu.Lock()
	b.concurrent--
	b.mu.Unlock()
}

func (b *Breaker) done(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.concurrent--
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onFailure() {
	b.totalFailures++
	b.failures++
	b.successes = 0
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

func (b *Breaker) onSuccess() {
	b.totalSuccesses++
	b.successes++

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.successes >= b.cfg.SuccessThreshold {
			b.setState(StateClosed)
			b.failures = 0
		}
	}
}

// setState must be called with mu held
func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.successes = 0

	if b.cfg.OnStateChange != nil {
		b.callbacks.Add(1)
		go func() {
			defer b.callbacks.Done()
			b.cfg.OnStateChange(b.cfg.Name, from, to)
		}()
	}
}

// State returns the current position
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// IsOpen reports whether calls are currently rejected
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Stats returns the counters
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Name:           b.cfg.Name,
		State:          b.state,
		TotalRequests:  b.totalRequests,
		TotalFailures:  b.totalFailures,
		TotalSuccesses: b.totalSuccesses,
		TotalRejected:  b.totalRejected,
		Failures:       b.failures,
		Concurrent:     b.concurrent,
	}
}

// Reset closes the breaker and clears the failure count
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.failures = 0
	b.successes = 0
}

// ForceOpen opens the breaker as if the threshold had been reached
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateOpen)
	b.lastFailure = time.Now()
}

// Close waits for pending state-change callbacks
func (b *Breaker) Close() {
	b.callbacks.Wait()
}
