// ABOUTME: Tests for the shared header builder
// ABOUTME: Covers presence rules, purity and redaction

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/courier-gateway/internal/session"
)

func TestBuildHeaders_Absent(t *testing.T) {
	h := BuildHeaders("")

	assert.Equal(t, Headers{"Content-Type": "application/json"}, h)
	assert.False(t, h.Authenticated())
}

func TestBuildHeaders_Present(t *testing.T) {
	h := BuildHeaders("gho_123")

	assert.Equal(t, Headers{
		"Content-Type":  "application/json",
		"Authorization": "Bearer gho_123",
	}, h)
	assert.True(t, h.Authenticated())
}

func TestBuildHeaders_Idempotent(t *testing.T) {
	first, err := json.Marshal(BuildHeaders("tok"))
	require.NoError(t, err)
	second, err := json.Marshal(BuildHeaders("tok"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildHeaders_ReturnsFreshMap(t *testing.T) {
	a := BuildHeaders("tok")
	a["X-Extra"] = "1"

	assert.NotContains(t, BuildHeaders("tok"), "X-Extra")
}

func TestCredentialFor(t *testing.T) {
	assert.False(t, CredentialFor(nil).Present())
	assert.False(t, CredentialFor(&session.Session{User: session.User{ID: "u"}}).Present())
	assert.Equal(t, Credential("at"), CredentialFor(&session.Session{User: session.User{ID: "u"}, AccessToken: "at"}))
}

func TestHeaders_Apply(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Content-Type", "text/plain")

	BuildHeaders("tok").Apply(r)

	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
}

func TestHeaders_Redacted(t *testing.T) {
	h := BuildHeaders("secret-token")
	red := h.Redacted()

	assert.Equal(t, "Bearer [REDACTED]", red["Authorization"])
	assert.Equal(t, "application/json", red["Content-Type"])
	assert.Equal(t, "Bearer secret-token", h["Authorization"], "original must not change")

	assert.NotContains(t, BuildHeaders("").Redacted(), "Authorization")
}
