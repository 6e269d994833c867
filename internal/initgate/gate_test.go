package initgate

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
)

func TestGate_FirstCallerBootstraps(t *testing.T) {
	g := New()
	require.Equal(t, StateNotStarted, g.State())

	status, _ := g.Status()
	assert.Equal(t, mediation.StatusNotInitialized, status)

	var calls int
	status, err := g.Initialize(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, mediation.StatusDoesNotApply, status)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateDone, g.State())

	select {
	case <-g.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestGate_SubsequentCallersSkipBootstrap(t *testing.T) {
	g := New()
	var calls atomic.Int32
	bootstrap := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	for i := 0; i < 5; i++ {
		status, err := g.Initialize(context.Background(), bootstrap)
		require.NoError(t, err)
		assert.Equal(t, mediation.StatusDoesNotApply, status)
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestGate_ConcurrentInitializeRunsBootstrapOnce(t *testing.T) {
	g := New()
	var calls atomic.Int32
	release := make(chan struct{})

	bootstrap := func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}

	const callers = 64
	var wg sync.WaitGroup
	var notified atomic.Int32
	statuses := make([]mediation.InitializationStatus, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, _ := g.Initialize(context.Background(), bootstrap)
			statuses[i] = status
			notified.Add(1)
		}(i)
	}

	// Losers return while the winner is still inside bootstrap
	for notified.Load() < callers-1 {
		if calls.Load() > 1 {
			break
		}
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(callers), notified.Load())

	final := 0
	for _, status := range statuses {
		switch status {
		case mediation.StatusDoesNotApply:
			final++
		case mediation.StatusInitializing:
		default:
			t.Errorf("unexpected status %s", status)
		}
	}
	assert.GreaterOrEqual(t, final, 1, "the winner reports the final status")
}

func TestGate_BootstrapFailureDoesNotReopen(t *testing.T) {
	g := New()
	bootErr := errors.New("no context")
	var calls int

	status, err := g.Initialize(context.Background(), func(context.Context) error {
		calls++
		return bootErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBootstrapFailed)
	assert.ErrorIs(t, err, bootErr)
	assert.Equal(t, mediation.StatusInitializedFailure, status)

	status, err = g.Initialize(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	assert.Equal(t, mediation.StatusInitializedFailure, status)
	assert.ErrorIs(t, err, bootErr)
	assert.Equal(t, 1, calls)
}

func TestGate_BootstrapPanicIsReported(t *testing.T) {
	g := New()

	status, err := g.Initialize(context.Background(), func(context.Context) error {
		panic("boom")
	})

	assert.Equal(t, mediation.StatusInitializedFailure, status)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StateDone, g.State())
}

func TestGate_NilBootstrap(t *testing.T) {
	g := New()
	status, err := g.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, mediation.StatusDoesNotApply, status)
}
