package auth

import "context"

type contextKey struct{}

// Session identifies the authenticated account for a request.
type Session struct {
	AccountID string
	Email     string
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// AccountID returns the authenticated account id, or "" for an
// anonymous request.
func AccountID(ctx context.Context) string {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return ""
	}
	return s.AccountID
}
