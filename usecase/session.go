package usecase

import (
	"context"
	"time"

	"cryptocagua/dao"
)

// AdminSessionTTL bounds how long a client admin token stays valid.
const AdminSessionTTL = 12 * time.Hour

type sessionKey struct{}

// WithSession marks ctx as a remote client request carrying token, which is
// empty for anonymous clients. Admin checks on such a context only accept
// the token and ignore the node-wide session the command line opens.
func WithSession(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionKey{}, token)
}

// SessionToken returns the client token on ctx and whether ctx belongs to a
// remote client at all.
func SessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionKey{}).(string)
	return token, ok
}

func isAdmin(ctx context.Context, settings *dao.SettingsRepository, now time.Time) (bool, error) {
	if token, remote := SessionToken(ctx); remote {
		return settings.AdminTokenValid(ctx, token, now)
	}
	return settings.IsAdmin(ctx)
}

func requireAdmin(ctx context.Context, settings *dao.SettingsRepository, now time.Time) error {
	ok, err := isAdmin(ctx, settings, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminRequired
	}
	return nil
}
