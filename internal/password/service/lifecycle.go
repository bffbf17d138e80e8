// Package service implements the password lifecycle: self-service and administrative
// password changes, reset tokens and invite tokens.
package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit"
	auditdomain "dfp-neo/backend/internal/audit/domain"
	"dfp-neo/backend/internal/autherr"
	"dfp-neo/backend/internal/notify"
	"dfp-neo/backend/internal/password/domain"
	"dfp-neo/backend/internal/security"
	"dfp-neo/backend/internal/tokenstore"
	userdomain "dfp-neo/backend/internal/user/domain"
	userrepo "dfp-neo/backend/internal/user/repository"
)

const (
	DefaultResetTTL  = 30 * time.Minute
	DefaultInviteTTL = 72 * time.Hour
)

// Sessions is the part of the session manager the lifecycle needs.
type Sessions interface {
	RevokeAllForUser(ctx context.Context, userID, actorID string) (int, error)
	RevokeOthersForUser(ctx context.Context, userID, keepToken, actorID string) (int, error)
	ClearMustChangePassword(ctx context.Context, token string) error
}

// Config holds token lifetimes and the base URL links are built from.
type Config struct {
	ResetTTL  time.Duration
	InviteTTL time.Duration
	BaseURL   string
}

// ChangeOwn is a self-service password change by the holder of SessionToken.
type ChangeOwn struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	SessionToken    string
}

// AdminSet is an administrator setting another user's password.
type AdminSet struct {
	TargetUserID string
	NewPassword  string
	MustChange   bool
	ActorID      string
}

// Invite is a freshly minted invite token and the link that carries it.
type Invite struct {
	Token     string
	Link      string
	ExpiresAt time.Time
}

// Lifecycle owns reset and invite tokens and every password write.
type Lifecycle struct {
	tokens   tokenstore.Store[domain.OneTimeToken]
	users    userrepo.Repository
	hasher   *security.Hasher
	sessions Sessions
	sender   notify.Sender
	audit    audit.Recorder
	log      zerolog.Logger
	cfg      Config
	nowF     func() time.Time
}

// NewLifecycle returns a Lifecycle. Zero durations in cfg fall back to the defaults.
func NewLifecycle(
	tokens tokenstore.Store[domain.OneTimeToken],
	users userrepo.Repository,
	hasher *security.Hasher,
	sessions Sessions,
	sender notify.Sender,
	rec audit.Recorder,
	log zerolog.Logger,
	cfg Config,
) *Lifecycle {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = DefaultInviteTTL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Lifecycle{
		tokens:   tokens,
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		sender:   sender,
		audit:    rec,
		log:      log.With().Str("component", "password").Logger(),
		cfg:      cfg,
		nowF:     time.Now,
	}
}

// WithClock replaces the clock. Tests only.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.nowF = now
	return l
}

// RequestReset mints a reset token for identifier and sends the link. The outcome is
// the same whether or not the identity exists: unknown and inactive identities get an
// empty token and a nil error. Older unused reset tokens of the user are invalidated.
func (l *Lifecycle) RequestReset(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", autherr.Invalid("userId is required")
	}
	u, err := l.users.GetByLogin(ctx, identifier)
	if err != nil {
		return "", autherr.Internal(err)
	}
	if u == nil || !u.IsActive {
		l.log.Debug().Msg("reset requested for unknown or inactive identity")
		return "", nil
	}

	token, expiresAt, err := l.mint(ctx, u.ID, domain.PurposeReset, l.cfg.ResetTTL, "")
	if err != nil {
		return "", err
	}
	if u.Email == "" {
		l.log.Warn().Str("user_id", u.ID).Msg("reset token issued for user without e-mail")
	} else if err := l.sender.SendResetLink(ctx, recipient(u), l.ResetLink(token), expiresAt); err != nil {
		l.log.Error().Err(err).Str("user_id", u.ID).Msg("send reset link")
	}
	l.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  u.ID,
		Action:       auditdomain.ActionPasswordResetRequest,
		TargetUserID: u.ID,
		Metadata:     map[string]any{"expires_at": expiresAt},
	})
	return token, nil
}

// ValidateResetToken returns the user a reset token belongs to without consuming it.
func (l *Lifecycle) ValidateResetToken(ctx context.Context, token string) (string, error) {
	return l.validate(ctx, token, domain.PurposeReset)
}

// ValidateInviteToken is ValidateResetToken for invite tokens.
func (l *Lifecycle) ValidateInviteToken(ctx context.Context, token string) (string, error) {
	return l.validate(ctx, token, domain.PurposeInvite)
}

func (l *Lifecycle) validate(ctx context.Context, token string, purpose domain.Purpose) (string, error) {
	if token == "" {
		return "", autherr.Invalid("token is required")
	}
	e, err := l.tokens.Get(ctx, security.HashToken(token))
	if err != nil {
		return "", autherr.Internal(err)
	}
	if e.Value.Purpose != purpose {
		return "", autherr.ErrNotFound
	}
	if e.Value.Used {
		return "", autherr.ErrAlreadyUsed
	}
	return e.Value.UserID, nil
}

// ConsumeToken atomically marks token used and returns its user. Of any number of
// concurrent calls with the same token, at most one succeeds; the rest get
// autherr.ErrAlreadyUsed.
func (l *Lifecycle) ConsumeToken(ctx context.Context, token string, purpose domain.Purpose) (string, error) {
	if token == "" {
		return "", autherr.Invalid("token is required")
	}
	now := l.nowF().UTC()
	e, err := l.tokens.Update(ctx, security.HashToken(token), func(t domain.OneTimeToken) (domain.OneTimeToken, error) {
		if t.Purpose != purpose {
			return t, autherr.ErrNotFound
		}
		if t.Used {
			return t, autherr.ErrAlreadyUsed
		}
		t.Used = true
		t.UsedAt = &now
		return t, nil
	})
	if err != nil {
		return "", autherr.Internal(err)
	}
	return e.Value.UserID, nil
}

// ChangePassword sets a new password for userID and revokes all of the user's sessions.
func (l *Lifecycle) ChangePassword(ctx context.Context, userID, newPassword, actorID string) error {
	if userID == "" {
		return autherr.Invalid("user id is required")
	}
	if err := security.ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := l.write(ctx, userID, newPassword, false); err != nil {
		return err
	}
	if _, err := l.sessions.RevokeAllForUser(ctx, userID, actorID); err != nil {
		l.log.Error().Err(err).Str("user_id", userID).Msg("revoke sessions after password change")
		return autherr.Internal(err)
	}
	l.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  actorID,
		Action:       auditdomain.ActionPasswordChange,
		TargetUserID: userID,
	})
	return nil
}

// ChangeOwnPassword verifies the current password, writes the new one and revokes every
// session of the user except the caller's.
func (l *Lifecycle) ChangeOwnPassword(ctx context.Context, req ChangeOwn) error {
	if req.UserID == "" || req.CurrentPassword == "" || req.NewPassword == "" {
		return autherr.Invalid("current and new password are required")
	}
	u, err := l.users.GetByID(ctx, req.UserID)
	if err != nil {
		return autherr.Internal(err)
	}
	if u == nil {
		return autherr.ErrNotFound
	}
	if err := l.hasher.Compare(u.PasswordHash, []byte(req.CurrentPassword)); err != nil {
		return autherr.ErrInvalidCredentials
	}
	if err := security.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword == req.CurrentPassword {
		return &autherr.PolicyError{Problems: []string{"must differ from the current password"}}
	}
	if err := l.write(ctx, u.ID, req.NewPassword, false); err != nil {
		return err
	}
	if _, err := l.sessions.RevokeOthersForUser(ctx, u.ID, req.SessionToken, u.ID); err != nil {
		l.log.Error().Err(err).Str("user_id", u.ID).Msg("revoke other sessions after password change")
		return autherr.Internal(err)
	}
	if req.SessionToken != "" {
		if err := l.sessions.ClearMustChangePassword(ctx, req.SessionToken); err != nil {
			l.log.Warn().Err(err).Str("user_id", u.ID).Msg("clear must-change flag on session")
		}
	}
	l.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  u.ID,
		Action:       auditdomain.ActionPasswordChange,
		TargetUserID: u.ID,
		Metadata:     map[string]any{"self_service": true},
	})
	return nil
}

// ResetPassword redeems a reset token.
func (l *Lifecycle) ResetPassword(ctx context.Context, token, newPassword string) error {
	return l.redeem(ctx, token, newPassword, domain.PurposeReset, auditdomain.ActionPasswordReset)
}

// SetPassword redeems an invite token.
func (l *Lifecycle) SetPassword(ctx context.Context, token, newPassword string) error {
	return l.redeem(ctx, token, newPassword, domain.PurposeInvite, auditdomain.ActionPasswordSet)
}

// redeem checks the policy, claims the token, then writes the password. The token is
// claimed before the write so a failed write still leaves it unusable.
func (l *Lifecycle) redeem(ctx context.Context, token, newPassword string, purpose domain.Purpose, action auditdomain.Action) error {
	if token == "" || newPassword == "" {
		return autherr.Invalid("token and password are required")
	}
	if err := security.ValidatePassword(newPassword); err != nil {
		return err
	}
	userID, err := l.ConsumeToken(ctx, token, purpose)
	if err != nil {
		return err
	}
	if err := l.write(ctx, userID, newPassword, false); err != nil {
		l.log.Error().Err(err).Str("user_id", userID).Str("purpose", string(purpose)).Msg("password write after token claim")
		return err
	}
	if _, err := l.sessions.RevokeAllForUser(ctx, userID, userID); err != nil {
		l.log.Error().Err(err).Str("user_id", userID).Msg("revoke sessions after token redemption")
		return autherr.Internal(err)
	}
	l.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  userID,
		Action:       action,
		TargetUserID: userID,
	})
	return nil
}

// CreateInviteToken mints an invite for userID. ttlHours <= 0 uses the configured default.
func (l *Lifecycle) CreateInviteToken(ctx context.Context, userID string, ttlHours int, actorID string) (string, error) {
	inv, err := l.CreateInvite(ctx, userID, ttlHours, actorID)
	if err != nil {
		return "", err
	}
	return inv.Token, nil
}

// CreateInvite is CreateInviteToken returning the link and expiry as well. Older unused
// invites of the user are invalidated.
func (l *Lifecycle) CreateInvite(ctx context.Context, userID string, ttlHours int, actorID string) (*Invite, error) {
	if userID == "" {
		return nil, autherr.Invalid("user id is required")
	}
	u, err := l.mustUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ttl := l.cfg.InviteTTL
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}
	token, expiresAt, err := l.mint(ctx, u.ID, domain.PurposeInvite, ttl, actorID)
	if err != nil {
		return nil, err
	}
	inv := &Invite{Token: token, Link: l.link("/set-password", token), ExpiresAt: expiresAt}
	if u.Email != "" {
		if err := l.sender.SendInviteLink(ctx, recipient(u), inv.Link, expiresAt); err != nil {
			l.log.Error().Err(err).Str("user_id", u.ID).Msg("send invite link")
		}
	}
	l.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  actorID,
		Action:       auditdomain.ActionInviteCreated,
		TargetUserID: u.ID,
		Metadata:     map[string]any{"expires_at": expiresAt},
	})
	return inv, nil
}

// ForceReset clears the user's password, requires a change at next sign-in and revokes
// every session of the user.
func (l *Lifecycle) ForceReset(ctx context.Context, userID, actorID string) error {
	if userID == "" {
		return autherr.Invalid("user id is required")
	}
	if _, err := l.mustUser(ctx, userID); err != nil {
		return err
	}
	if err := l.users.SetPassword(ctx, userID, "", true, l.nowF().UTC()); err != nil {
		return repoErr(err)
	}
	if _, err := l.sessions.RevokeAllForUser(ctx, userID, actorID); err != nil {
		return autherr.Internal(err)
	}
	l.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  actorID,
		Action:       auditdomain.ActionPasswordResetForced,
		TargetUserID: userID,
	})
	return nil
}

// AdminSetPassword sets another user's password and revokes the user's sessions.
func (l *Lifecycle) AdminSetPassword(ctx context.Context, req AdminSet) error {
	if req.TargetUserID == "" || req.NewPassword == "" {
		return autherr.Invalid("user id and new password are required")
	}
	if err := security.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if _, err := l.mustUser(ctx, req.TargetUserID); err != nil {
		return err
	}
	if err := l.write(ctx, req.TargetUserID, req.NewPassword, req.MustChange); err != nil {
		return err
	}
	if _, err := l.sessions.RevokeAllForUser(ctx, req.TargetUserID, req.ActorID); err != nil {
		return autherr.Internal(err)
	}
	l.audit.Record(ctx, auditdomain.Event{
		ActorUserID:  req.ActorID,
		Action:       auditdomain.ActionAdminPasswordReset,
		TargetUserID: req.TargetUserID,
		Metadata:     map[string]any{"must_change_password": req.MustChange},
	})
	return nil
}

// mint supersedes the user's unused tokens of the same purpose and stores a new one.
func (l *Lifecycle) mint(ctx context.Context, userID string, purpose domain.Purpose, ttl time.Duration, createdBy string) (string, time.Time, error) {
	if _, err := l.tokens.DeleteMatching(ctx, func(_ string, t domain.OneTimeToken) bool {
		return t.UserID == userID && t.Purpose == purpose && !t.Used
	}); err != nil {
		return "", time.Time{}, autherr.Internal(err)
	}
	token, err := security.GenerateToken()
	if err != nil {
		return "", time.Time{}, autherr.Internal(err)
	}
	rec := domain.OneTimeToken{
		UserID:    userID,
		Purpose:   purpose,
		CreatedBy: createdBy,
		CreatedAt: l.nowF().UTC(),
	}
	expiresAt, err := l.tokens.Put(ctx, security.HashToken(token), rec, ttl)
	if err != nil {
		return "", time.Time{}, autherr.Internal(err)
	}
	return token, expiresAt, nil
}

// write hashes and persists a password. Hashing runs outside any store lock.
func (l *Lifecycle) write(ctx context.Context, userID, password string, mustChange bool) error {
	hash, err := l.hasher.Hash([]byte(password))
	if err != nil {
		return autherr.Internal(err)
	}
	if err := l.users.SetPassword(ctx, userID, hash, mustChange, l.nowF().UTC()); err != nil {
		return repoErr(err)
	}
	return nil
}

func (l *Lifecycle) mustUser(ctx context.Context, userID string) (*userdomain.User, error) {
	u, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return nil, autherr.Internal(err)
	}
	if u == nil {
		return nil, autherr.ErrNotFound
	}
	return u, nil
}

// ResetLink is the link a reset token is delivered in.
func (l *Lifecycle) ResetLink(token string) string {
	return l.link("/reset-password", token)
}

func (l *Lifecycle) link(path, token string) string {
	return l.cfg.BaseURL + path + "?token=" + url.QueryEscape(token)
}

func repoErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return autherr.ErrNotFound
	}
	return autherr.Internal(err)
}

func recipient(u *userdomain.User) notify.Recipient {
	name := u.DisplayName
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return notify.Recipient{Email: u.Email, Name: name}
}
