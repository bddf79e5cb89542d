// ABOUTME: Session context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating the resolved session via context

package auth

import (
	"context"

	"github.com/2389/courier-gateway/internal/session"
)

// AuthContext holds the session read for a request by SessionMiddleware.
// Session is nil for anonymous callers. Err is set when the lookup faulted.
type AuthContext struct {
	Session *session.Session
	Err     error
}

// Authenticated returns true if the request carries a valid session.
func (a *AuthContext) Authenticated() bool {
	return a != nil && a.Err == nil && a.Session != nil
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	auth, ok := val.(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}
