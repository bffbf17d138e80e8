package middleware

import (
	"context"

	sessiondomain "dfp-neo/backend/internal/session/domain"
	userdomain "dfp-neo/backend/internal/user/domain"
)

type contextKey struct{ name string }

var (
	identityKey   = contextKey{"identity"}
	clientMetaKey = contextKey{"client_meta"}
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID             string
	Role               userdomain.Role
	SessionID          string
	Token              string
	MustChangePassword bool
}

// IdentityFromSession builds the Identity for a validated session and its bearer token.
func IdentityFromSession(s *sessiondomain.Session, token string) Identity {
	return Identity{
		UserID:             s.User.ID,
		Role:               s.User.Role,
		SessionID:          s.ID,
		Token:              token,
		MustChangePassword: s.User.MustChangePassword,
	}
}

// WithIdentity returns a context carrying id.
// Handlers read it via GetIdentity, GetUserID, GetSessionID.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the caller identity and true if set; otherwise zero, false.
func GetIdentity(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey).(Identity)
	return v, ok
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || id.SessionID == "" {
		return "", false
	}
	return id.SessionID, true
}

type clientMeta struct {
	ip, userAgent string
}

// WithClientMeta returns a context carrying the caller's address and user agent.
func WithClientMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientMetaKey, clientMeta{ip: ip, userAgent: userAgent})
}

// ClientMeta returns the caller's address and user agent. It satisfies audit.MetaExtractor.
func ClientMeta(ctx context.Context) (ip, userAgent string) {
	m, _ := ctx.Value(clientMetaKey).(clientMeta)
	return m.ip, m.userAgent
}
