package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often a Sweeper runs when no interval is configured.
const DefaultSweepInterval = time.Hour

// Sweepable is anything that can drop its expired state in bulk: every Store and the rate limiter.
type Sweepable interface {
	Sweep(ctx context.Context) (int, error)
}

// Target names a Sweepable for logs.
type Target struct {
	Name string
	S    Sweepable
}

// Sweeper periodically sweeps its targets. Start and Stop bound its lifetime;
// it never starts on its own.
type Sweeper struct {
	interval time.Duration
	targets  []Target
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper returns a stopped Sweeper. interval <= 0 uses DefaultSweepInterval.
func NewSweeper(interval time.Duration, log zerolog.Logger, targets ...Target) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		interval: interval,
		targets:  targets,
		log:      log.With().Str("component", "sweeper").Logger(),
	}
}

// RunOnce sweeps every target once and returns the total removed. A failing target
// is logged and does not stop the others.
func (w *Sweeper) RunOnce(ctx context.Context) int {
	total := 0
	for _, t := range w.targets {
		n, err := t.S.Sweep(ctx)
		if err != nil {
			w.log.Error().Err(err).Str("target", t.Name).Msg("sweep failed")
			continue
		}
		if n > 0 {
			w.log.Debug().Str("target", t.Name).Int("removed", n).Msg("swept expired entries")
		}
		total += n
	}
	return total
}

// Start launches the sweep loop. Calling Start on a running Sweeper is a no-op.
func (w *Sweeper) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
	w.log.Info().Dur("interval", w.interval).Int("targets", len(w.targets)).Msg("sweeper started")
}

func (w *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.log.Info().Msg("sweeper stopped")
}
