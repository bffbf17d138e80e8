package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// sendTimeout bounds one background delivery.
const sendTimeout = 30 * time.Second

// Async hands links to a Sender on a goroutine, so a reset request takes the same time
// whether or not mail goes out. Delivery errors are logged; the Send methods always
// return nil. Request cancellation does not abort a delivery.
type Async struct {
	inner Sender
	log   zerolog.Logger
	wg    sync.WaitGroup
}

// NewAsync wraps s.
func NewAsync(s Sender, log zerolog.Logger) *Async {
	return &Async{inner: s, log: log.With().Str("component", "notify").Logger()}
}

func (a *Async) SendResetLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	a.dispatch(ctx, "reset", func(ctx context.Context) error {
		return a.inner.SendResetLink(ctx, to, link, expiresAt)
	})
	return nil
}

func (a *Async) SendInviteLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	a.dispatch(ctx, "invite", func(ctx context.Context) error {
		return a.inner.SendInviteLink(ctx, to, link, expiresAt)
	})
	return nil
}

func (a *Async) dispatch(ctx context.Context, kind string, send func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(bg, sendTimeout)
		defer cancel()
		if err := send(sendCtx); err != nil {
			a.log.Error().Err(err).Str("kind", kind).Msg("deliver link")
		}
	}()
}

// Close waits for pending deliveries until ctx is done. Returns false if some are
// still running.
func (a *Async) Close(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
