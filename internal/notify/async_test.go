package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// gatedSender blocks every send until release is closed.
type gatedSender struct {
	release chan struct{}
	err     error

	mu    sync.Mutex
	links []string
}

func (s *gatedSender) send(link string) error {
	<-s.release
	s.mu.Lock()
	s.links = append(s.links, link)
	s.mu.Unlock()
	return s.err
}

func (s *gatedSender) SendResetLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	return s.send(link)
}

func (s *gatedSender) SendInviteLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	return s.send(link)
}

func (s *gatedSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.links...)
}

func TestAsync_ReturnsBeforeDelivery(t *testing.T) {
	inner := &gatedSender{release: make(chan struct{})}
	a := NewAsync(inner, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan error, 1)
	go func() {
		returned <- a.SendResetLink(ctx, Recipient{Email: "a@example.com"}, "reset-link", time.Now())
	}()
	select {
	case err := <-returned:
		if err != nil {
			t.Fatalf("SendResetLink = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SendResetLink waited for the inner sender")
	}
	cancel()

	if err := a.SendInviteLink(context.Background(), Recipient{}, "invite-link", time.Now()); err != nil {
		t.Fatalf("SendInviteLink = %v, want nil", err)
	}
	short, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	if a.Close(short) {
		t.Fatal("Close reported drained while deliveries were blocked")
	}

	close(inner.release)
	if !a.Close(context.Background()) {
		t.Fatal("Close did not drain")
	}
	if got := inner.sent(); len(got) != 2 {
		t.Errorf("delivered %v, want both links despite the cancelled request", got)
	}
}

func TestAsync_LogsDeliveryErrors(t *testing.T) {
	inner := &gatedSender{release: make(chan struct{}), err: errors.New("smtp: 421")}
	close(inner.release)
	var buf bytes.Buffer
	a := NewAsync(inner, zerolog.New(&buf))
	if err := a.SendResetLink(context.Background(), Recipient{}, "reset-link", time.Now()); err != nil {
		t.Fatalf("SendResetLink = %v, want nil", err)
	}
	if !a.Close(context.Background()) {
		t.Fatal("Close did not drain")
	}
	if out := buf.String(); !strings.Contains(out, "smtp: 421") || !strings.Contains(out, `"kind":"reset"`) {
		t.Errorf("log output = %s", out)
	}
}
