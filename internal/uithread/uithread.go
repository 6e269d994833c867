// Package uithread provides the "run on the UI thread" primitive used to
// marshal ad object construction, loads and shows onto a single goroutine.
package uithread

import (
	"sync"

	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// Dispatcher runs work on the UI thread without blocking the caller
type Dispatcher interface {
	Post(fn func())
}

// Loop is a single-goroutine FIFO dispatcher. Post never blocks; the queue is
// unbounded so a slow SDK call cannot stall the framework's calling goroutines.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewLoop starts a dispatcher goroutine
func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post enqueues fn. Work posted after Close is dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		logger.Log.Warn().Msg("uithread: post after close dropped")
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
}

// Pending returns the number of queued tasks
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close runs every already-queued task and stops the loop
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Signal()
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		runSafely(fn)
	}
}

// Inline runs posted work synchronously on the caller's goroutine
type Inline struct{}

func (Inline) Post(fn func()) {
	if fn != nil {
		runSafely(fn)
	}
}

func runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error().Interface("panic", r).Msg("uithread: recovered panic in posted task")
		}
	}()
	fn()
}

var (
	_ Dispatcher = (*Loop)(nil)
	_ Dispatcher = Inline{}
)
