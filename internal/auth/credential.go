// ABOUTME: Credential type and the shared header builder
// ABOUTME: BuildHeaders is the single projection from credential to outbound headers

package auth

import (
	"net/http"

	"github.com/2389/courier-gateway/internal/session"
)

// Header names set by BuildHeaders.
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
)

const redactedValue = "Bearer [REDACTED]"

// Credential is a bearer token for the downstream service. The zero value
// means absent.
type Credential string

// Present reports whether the credential carries a token.
func (c Credential) Present() bool {
	return c != ""
}

// CredentialFor extracts the credential carried by a session.
// A nil session or one without an access token yields an absent credential.
func CredentialFor(s *session.Session) Credential {
	if !s.HasAccessToken() {
		return ""
	}
	return Credential(s.AccessToken)
}

// Headers is the header set attached to outbound downstream requests.
type Headers map[string]string

// BuildHeaders returns the outbound headers for a credential.
func BuildHeaders(c Credential) Headers {
	h := Headers{HeaderContentType: "application/json"}
	if c.Present() {
		h[HeaderAuthorization] = "Bearer " + string(c)
	}
	return h
}

// Apply sets every header on the request, replacing existing values.
func (h Headers) Apply(r *http.Request) {
	for name, value := range h {
		r.Header.Set(name, value)
	}
}

// Authenticated reports whether the set carries an Authorization header.
func (h Headers) Authenticated() bool {
	_, ok := h[HeaderAuthorization]
	return ok
}

// Redacted returns a copy safe to log or display.
func (h Headers) Redacted() Headers {
	out := make(Headers, len(h))
	for name, value := range h {
		if name == HeaderAuthorization {
			value = redactedValue
		}
		out[name] = value
	}
	return out
}
