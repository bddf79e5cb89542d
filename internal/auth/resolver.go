// ABOUTME: Credential resolvers for the client and server execution contexts
// ABOUTME: Both resolve a session to a Credential and differ only in where the session lives

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/courier-gateway/internal/session"
)

// ErrResolve wraps faults encountered while reading a session.
var ErrResolve = errors.New("credential resolution failed")

// ExecContext selects where a resolver looks for the session.
type ExecContext int

const (
	// ExecClient resolves from a client-held session cookie.
	ExecClient ExecContext = iota + 1
	// ExecServer resolves from an inbound HTTP request.
	ExecServer
)

// String returns the context name.
func (ec ExecContext) String() string {
	switch ec {
	case ExecClient:
		return "client"
	case ExecServer:
		return "server"
	default:
		return "unknown"
	}
}

// Scope carries the session context a resolver reads from. Only the field
// matching the resolver's ExecContext is consulted.
type Scope struct {
	Client  *session.ClientState
	Request *http.Request
}

// ClientScope wraps client state in a Scope.
func ClientScope(state *session.ClientState) Scope {
	return Scope{Client: state}
}

// RequestScope wraps an inbound request in a Scope.
func RequestScope(r *http.Request) Scope {
	return Scope{Request: r}
}

// Resolver turns the session in a scope into a Credential.
type Resolver interface {
	Resolve(ctx context.Context, scope Scope) (Credential, error)
}

// ResolverOptions configures NewResolver. Source and CookieName are used by
// ExecServer only.
type ResolverOptions struct {
	Source     session.Source
	CookieName string
}

// NewResolver creates the resolver for an execution context.
func NewResolver(ec ExecContext, opts ResolverOptions) (Resolver, error) {
	switch ec {
	case ExecClient:
		return clientResolver{}, nil
	case ExecServer:
		if opts.Source == nil {
			return nil, errors.New("server resolver requires a session source")
		}
		cookieName := opts.CookieName
		if cookieName == "" {
			cookieName = session.DefaultCookieName
		}
		return serverResolver{source: opts.Source, cookieName: cookieName}, nil
	default:
		return nil, fmt.Errorf("unknown execution context %d", int(ec))
	}
}

// clientResolver reads the session through the gateway's session endpoint.
type clientResolver struct{}

func (clientResolver) Resolve(ctx context.Context, scope Scope) (Credential, error) {
	if scope.Client == nil {
		return "", nil
	}
	s, err := scope.Client.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolve, err)
	}
	return CredentialFor(s), nil
}

// serverResolver reads the session attached to an inbound request.
type serverResolver struct {
	source     session.Source
	cookieName string
}

func (r serverResolver) Resolve(ctx context.Context, scope Scope) (Credential, error) {
	if scope.Request == nil {
		return "", nil
	}

	if ac := FromContext(scope.Request.Context()); ac != nil {
		if ac.Err != nil {
			return "", fmt.Errorf("%w: %w", ErrResolve, ac.Err)
		}
		return CredentialFor(ac.Session), nil
	}

	s, err := session.ReadRequest(ctx, scope.Request, r.source, r.cookieName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolve, err)
	}
	return CredentialFor(s), nil
}
