// ABOUTME: Session and user types plus the Source lookup interface
// ABOUTME: Source implementations return (nil, nil) for anonymous callers

package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Session errors
var (
	ErrNoSession   = errors.New("no session")
	ErrMalformed   = errors.New("malformed session")
	ErrUnavailable = errors.New("session source unavailable")
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "courier.session-token"

// securePrefix is prepended to the cookie name when served over HTTPS.
const securePrefix = "__Secure-"

// User is the identity a session belongs to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// Session is a provider-issued record of an authenticated identity.
type Session struct {
	User        User      `json:"user"`
	AccessToken string    `json:"accessToken,omitempty"`
	Expires     time.Time `json:"expires,omitzero"`
}

// HasAccessToken reports whether the session carries an upstream token.
func (s *Session) HasAccessToken() bool {
	return s != nil && s.AccessToken != ""
}

// Source looks up the session identified by an opaque token.
type Source interface {
	Lookup(ctx context.Context, token string) (*Session, error)
}

// Disabled is a Source for deployments without sign-in; everyone is anonymous.
type Disabled struct{}

// Lookup always reports no session.
func (Disabled) Lookup(context.Context, string) (*Session, error) {
	return nil, nil
}

// TokenFromRequest returns the session token carried by the request cookie,
// preferring the __Secure- variant. Returns "" when neither is present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	for _, name := range []string{securePrefix + cookieName, cookieName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// ReadRequest resolves the session attached to an inbound request.
// ErrNoSession from the source is reported as (nil, nil).
func ReadRequest(ctx context.Context, r *http.Request, src Source, cookieName string) (*Session, error) {
	token := TokenFromRequest(r, cookieName)
	if token == "" {
		return nil, nil
	}
	s, err := src.Lookup(ctx, token)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	return s, err
}
