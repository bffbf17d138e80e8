// Package service implements the session manager: rate-limited login, session
// validation, logout and bulk revocation.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit"
	auditdomain "dfp-neo/backend/internal/audit/domain"
	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/identity"
	"dfp-neo/backend/internal/ratelimit"
	"dfp-neo/backend/internal/security"
	"dfp-neo/backend/internal/session/domain"
	"dfp-neo/backend/internal/tokenstore"
	userdomain "dfp-neo/backend/internal/user/domain"
)

// DefaultTTL is the fixed lifetime of a session.
const DefaultTTL = 30 * 24 * time.Hour

// Credentials is one login attempt.
type Credentials struct {
	Identifier string
	Secret     string
	ClientIP   string
}

// Issued is a freshly minted session. Token is the only copy of the bearer secret.
type Issued struct {
	Token   string
	Session *domain.Session
}

// Observer receives login and revocation outcomes for metrics.
type Observer interface {
	LoginSucceeded(ctx context.Context)
	LoginFailed(ctx context.Context)
	LockedOut(ctx context.Context)
	SessionsRevoked(ctx context.Context, n int)
}

type nopObserver struct{}

func (nopObserver) LoginSucceeded(context.Context)       {}
func (nopObserver) LoginFailed(context.Context)          {}
func (nopObserver) LockedOut(context.Context)            {}
func (nopObserver) SessionsRevoked(context.Context, int) {}

// Manager is the single authority for sessions. All session state lives in one store.
type Manager struct {
	sessions   tokenstore.Store[domain.Session]
	limiter    ratelimit.Limiter
	identities identity.Store
	audit      audit.Recorder
	obs        Observer
	log        zerolog.Logger
	ttl        time.Duration
	nowF       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.obs = o
		}
	}
}

// WithClock replaces the manager's clock. Tests only.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowF = now }
}

// NewManager returns a Manager. rec may be nil to disable auditing.
func NewManager(
	sessions tokenstore.Store[domain.Session],
	limiter ratelimit.Limiter,
	identities identity.Store,
	rec audit.Recorder,
	log zerolog.Logger,
	opts ...Option,
) *Manager {
	if rec == nil {
		rec = audit.Nop{}
	}
	m := &Manager{
		sessions:   sessions,
		limiter:    limiter,
		identities: identities,
		audit:      rec,
		obs:        nopObserver{},
		log:        log.With().Str("component", "session").Logger(),
		ttl:        DefaultTTL,
		nowF:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Authenticate checks the rate limiter, then the credentials. A locked-out identity is
// rejected before its password is examined. A wrong password counts toward the lockout
// and is reported as autherr.ErrInvalidCredentials, including the attempt that trips it.
func (m *Manager) Authenticate(ctx context.Context, c Credentials) (*userdomain.User, error) {
	identifier := strings.TrimSpace(c.Identifier)
	if identifier == "" || c.Secret == "" {
		return nil, autherr.Invalid("userId and password are required")
	}
	if err := m.limiter.Check(ctx, identifier); err != nil {
		if errors.Is(err, autherr.ErrLockedOut) {
			m.obs.LockedOut(ctx)
		}
		return nil, err
	}

	u, err := m.identities.FindByCredentials(ctx, identifier, c.Secret)
	if errors.Is(err, autherr.ErrInvalidCredentials) {
		m.obs.LoginFailed(ctx)
		m.audit.Record(ctx, auditdomain.Event{
			Action:    auditdomain.ActionLoginFailed,
			Metadata:  map[string]any{"identifier": ratelimit.Key(identifier)},
			IPAddress: c.ClientIP,
		})
		ferr := m.limiter.RecordFailure(ctx, identifier)
		switch {
		case errors.Is(ferr, autherr.ErrLockedOut):
			m.obs.LockedOut(ctx)
			m.audit.Record(ctx, auditdomain.Event{
				Action:    auditdomain.ActionLoginLockedOut,
				Metadata:  map[string]any{"identifier": ratelimit.Key(identifier)},
				IPAddress: c.ClientIP,
			})
		case ferr != nil:
			m.log.Error().Err(ferr).Msg("record login failure")
		}
		return nil, autherr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := m.limiter.RecordSuccess(ctx, identifier); err != nil {
		m.log.Error().Err(err).Str("user_id", u.ID).Msg("clear login failures")
	}
	return u, nil
}

// Login authenticates c and stores a new session for the user.
func (m *Manager) Login(ctx context.Context, c Credentials) (*Issued, error) {
	u, err := m.Authenticate(ctx, c)
	if err != nil {
		return nil, err
	}
	issued, err := m.open(ctx, u, c.ClientIP)
	if err != nil {
		return nil, err
	}
	if err := m.identities.MarkLogin(ctx, u.ID, issued.Session.CreatedAt); err != nil {
		m.log.Warn().Err(err).Str("user_id", u.ID).Msg("mark last login")
	}
	m.obs.LoginSucceeded(ctx)
	m.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  u.ID,
		Action:       auditdomain.ActionLogin,
		TargetUserID: u.ID,
		IPAddress:    c.ClientIP,
	})
	m.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("login succeeded")
	return issued, nil
}

func (m *Manager) open(ctx context.Context, u *userdomain.User, ip string) (*Issued, error) {
	token, err := security.GenerateToken()
	if err != nil {
		return nil, autherr.Internal(err)
	}
	s := domain.Session{
		ID:        security.HashToken(token),
		User:      domain.SnapshotOf(u),
		IPAddress: ip,
		CreatedAt: m.nowF().UTC(),
	}
	expiresAt, err := m.sessions.Put(ctx, s.ID, s, m.ttl)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	s.ExpiresAt = expiresAt
	return &Issued{Token: token, Session: &s}, nil
}

// Validate returns the live session for token: autherr.ErrNotFound when unknown,
// autherr.ErrExpired when past expiry (the session is deleted).
func (m *Manager) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, autherr.Invalid("session token is required")
	}
	return m.ValidateID(ctx, security.HashToken(token))
}

// ValidateID is Validate keyed by session id rather than bearer token.
func (m *Manager) ValidateID(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, autherr.Invalid("session id is required")
	}
	e, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	s := e.Value
	s.ExpiresAt = e.ExpiresAt
	return &s, nil
}

// Logout deletes the session for token. Unknown or expired tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return autherr.Invalid("session token is required")
	}
	key := security.HashToken(token)
	e, getErr := m.sessions.Get(ctx, key)
	if err := m.sessions.Delete(ctx, key); err != nil {
		return autherr.Internal(err)
	}
	if getErr == nil {
		m.audit.Record(ctx, auditdomain.Event{
			ActorUserID:  e.Value.User.ID,
			Action:       auditdomain.ActionLogout,
			TargetUserID: e.Value.User.ID,
		})
	}
	return nil
}

// RevokeAllForUser deletes every session of userID and audits the revocation as actorID.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID, actorID string) (int, error) {
	return m.revoke(ctx, userID, actorID, "")
}

// RevokeOthersForUser deletes every session of userID except the one for keepToken.
func (m *Manager) RevokeOthersForUser(ctx context.Context, userID, keepToken, actorID string) (int, error) {
	keep := ""
	if keepToken != "" {
		keep = security.HashToken(keepToken)
	}
	return m.revoke(ctx, userID, actorID, keep)
}

func (m *Manager) revoke(ctx context.Context, userID, actorID, keepKey string) (int, error) {
	if userID == "" {
		return 0, autherr.Invalid("user id is required")
	}
	n, err := m.sessions.DeleteMatching(ctx, func(key string, s domain.Session) bool {
		return s.User.ID == userID && key != keepKey
	})
	if err != nil {
		return n, autherr.Internal(err)
	}
	m.obs.SessionsRevoked(ctx, n)
	m.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  actorID,
		Action:       auditdomain.ActionSessionsRevoked,
		TargetUserID: userID,
		Metadata:     map[string]any{"count": n, "kept_current": keepKey != ""},
	})
	m.log.Info().Str("user_id", userID).Str("actor_id", actorID).Int("revoked", n).Msg("sessions revoked")
	return n, nil
}

// ClearMustChangePassword updates the snapshot held by the session for token.
func (m *Manager) ClearMustChangePassword(ctx context.Context, token string) error {
	if token == "" {
		return autherr.Invalid("session token is required")
	}
	_, err := m.sessions.Update(ctx, security.HashToken(token), func(s domain.Session) (domain.Session, error) {
		s.User.MustChangePassword = false
		return s, nil
	})
	if err != nil {
		return autherr.Internal(err)
	}
	return nil
}
