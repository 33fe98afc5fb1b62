package insights

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrDispatcherClosed is returned by Dispatch after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Runner executes the generation sequence for one poll.
type Runner interface {
	Generate(ctx context.Context, pollID string) Record
}

// BackgroundDispatcher runs generation in a goroutine of the serving
// process. The work outlives the request that started it but not the
// process; Shutdown waits for in-flight work.
type BackgroundDispatcher struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewBackgroundDispatcher creates a dispatcher bounding every generation by
// timeout (zero means unbounded).
func NewBackgroundDispatcher(runner Runner, timeout time.Duration, logger *slog.Logger) *BackgroundDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundDispatcher{runner: runner, timeout: timeout, logger: logger}
}

// Dispatch starts generation for pollID and returns immediately.
func (d *BackgroundDispatcher) Dispatch(ctx context.Context, pollID string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	// Keep request values, drop its cancellation.
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()

		if d.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, d.timeout)
			defer cancel()
		}

		start := time.Now()
		rec := d.runner.Generate(runCtx, pollID)
		d.logger.Info("Background insights generation finished",
			"poll_id", pollID,
			"status", rec.Status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	return nil
}

// Shutdown stops accepting work and waits for in-flight generations or
// ctx, whichever ends first.
func (d *BackgroundDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
