// ABOUTME: Tests for the client and server credential resolvers
// ABOUTME: Checks that both contexts yield identical headers for the same session

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/courier-gateway/internal/session"
)

var resolverTestSecret = []byte("resolver-test-secret-32-bytes!!!")

// sessionEndpoint serves the session JSON the way the gateway does.
func sessionEndpoint(src session.Source) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ac := FromContext(r.Context())
		if ac.Err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if ac.Session == nil {
			w.Write([]byte("null"))
			return
		}
		json.NewEncoder(w).Encode(ac.Session)
	})
	return SessionMiddleware(src, "", nil)(h)
}

func resolveBoth(t *testing.T, src session.Source, token string) (Headers, Headers) {
	t.Helper()
	ctx := context.Background()

	srv := httptest.NewServer(sessionEndpoint(src))
	t.Cleanup(srv.Close)

	client, err := NewResolver(ExecClient, ResolverOptions{})
	require.NoError(t, err)
	server, err := NewResolver(ExecServer, ResolverOptions{Source: src})
	require.NoError(t, err)

	clientCred, err := client.Resolve(ctx, ClientScope(&session.ClientState{Endpoint: srv.URL, Token: token}))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: token})
	}
	serverCred, err := server.Resolve(ctx, RequestScope(req))
	require.NoError(t, err)

	return BuildHeaders(clientCred), BuildHeaders(serverCred)
}

func TestResolvers_SameHeadersInBothContexts(t *testing.T) {
	codec, err := session.NewCodec(resolverTestSecret)
	require.NoError(t, err)

	withToken, err := codec.Encode(&session.Session{User: session.User{ID: "u1", Email: "a@b.c"}, AccessToken: "gho_abc"}, time.Hour)
	require.NoError(t, err)
	withoutToken, err := codec.Encode(&session.Session{User: session.User{ID: "u2"}}, time.Hour)
	require.NoError(t, err)
	expired, err := codec.Encode(&session.Session{User: session.User{ID: "u3"}, AccessToken: "old"}, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantAuth bool
	}{
		{name: "session with access token", token: withToken, wantAuth: true},
		{name: "session without access token", token: withoutToken},
		{name: "expired session", token: expired},
		{name: "garbage cookie", token: "garbage"},
		{name: "signed out", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientHeaders, serverHeaders := resolveBoth(t, codec, tt.token)

			clientJSON, _ := json.Marshal(clientHeaders)
			serverJSON, _ := json.Marshal(serverHeaders)
			assert.Equal(t, string(serverJSON), string(clientJSON))
			assert.Equal(t, tt.wantAuth, serverHeaders.Authenticated())
			assert.Equal(t, "application/json", serverHeaders["Content-Type"])
		})
	}
}

func TestServerResolver_UsesMiddlewareContext(t *testing.T) {
	src := &mockSource{err: errors.New("should not be called")}
	server, err := NewResolver(ExecServer, ResolverOptions{Source: src})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "tok"})
	req = req.WithContext(WithAuth(req.Context(), &AuthContext{
		Session: &session.Session{User: session.User{ID: "u"}, AccessToken: "from-context"},
	}))

	cred, err := server.Resolve(context.Background(), RequestScope(req))
	require.NoError(t, err)
	assert.Equal(t, Credential("from-context"), cred)
}

func TestServerResolver_Fault(t *testing.T) {
	src := &mockSource{err: errors.New("database is locked")}
	server, err := NewResolver(ExecServer, ResolverOptions{Source: src})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "tok"})

	cred, err := server.Resolve(context.Background(), RequestScope(req))
	assert.ErrorIs(t, err, ErrResolve)
	assert.False(t, cred.Present())
}

func TestServerResolver_MalformedSession(t *testing.T) {
	src := &mockSource{err: session.ErrMalformed}
	server, err := NewResolver(ExecServer, ResolverOptions{Source: src})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "tok"})

	_, err = server.Resolve(context.Background(), RequestScope(req))
	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, session.ErrMalformed)
}

func TestClientResolver_Fault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewResolver(ExecClient, ResolverOptions{})
	require.NoError(t, err)

	_, err = client.Resolve(context.Background(), ClientScope(&session.ClientState{Endpoint: srv.URL, Token: "tok"}))
	assert.ErrorIs(t, err, ErrResolve)
	assert.ErrorIs(t, err, session.ErrUnavailable)
}

func TestResolvers_EmptyScopeIsAnonymous(t *testing.T) {
	client, err := NewResolver(ExecClient, ResolverOptions{})
	require.NoError(t, err)
	server, err := NewResolver(ExecServer, ResolverOptions{Source: session.Disabled{}})
	require.NoError(t, err)

	for _, r := range []Resolver{client, server} {
		cred, err := r.Resolve(context.Background(), Scope{})
		assert.NoError(t, err)
		assert.False(t, cred.Present())
	}
}

func TestNewResolver_Errors(t *testing.T) {
	_, err := NewResolver(ExecServer, ResolverOptions{})
	assert.Error(t, err)

	_, err = NewResolver(ExecContext(99), ResolverOptions{})
	assert.Error(t, err)
}

func TestExecContext_String(t *testing.T) {
	assert.Equal(t, "client", ExecClient.String())
	assert.Equal(t, "server", ExecServer.String())
	assert.Equal(t, "unknown", ExecContext(0).String())
}
