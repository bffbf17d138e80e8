package audit

import (
	"context"
	"sync"
	"time"

	"dfp-neo/backend/internal/audit/domain"
)

// dispatchTimeout bounds one background write.
const dispatchTimeout = 5 * time.Second

// ShutdownDrainDuration is the longest Close waits for in-flight writes.
const ShutdownDrainDuration = dispatchTimeout

// Async hands events to a Logger on a goroutine so the request path never waits on
// the database or Kafka. Request metadata is captured before the goroutine starts and
// request cancellation does not abort the write.
type Async struct {
	inner *Logger
	wg    sync.WaitGroup
}

// NewAsync wraps l.
func NewAsync(l *Logger) *Async {
	return &Async{inner: l}
}

// Record enriches e from ctx and writes it in the background.
func (a *Async) Record(ctx context.Context, e domain.Event) {
	if a == nil || a.inner == nil {
		return
	}
	e = a.inner.Enrich(ctx, e)
	bg := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		writeCtx, cancel := context.WithTimeout(bg, dispatchTimeout)
		defer cancel()
		a.inner.Record(writeCtx, e)
	}()
}

// Close waits up to ShutdownDrainDuration (or ctx) for pending writes. Returns false on timeout.
func (a *Async) Close(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(ShutdownDrainDuration)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
