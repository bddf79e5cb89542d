// ABOUTME: Tests for the fake agent's /ask handler
// ABOUTME: Covers echo replies, validation and the anonymous/bearer rate limit tiers

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(l limits) http.Handler {
	return newAgent(l, 0, slog.New(slog.NewTextHandler(io.Discard, nil))).routes()
}

func ask(t *testing.T, h http.Handler, token, message string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(askRequest{Message: message})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAsk_Echo(t *testing.T) {
	h := newTestAgent(limits{AnonymousPerMinute: 10, AuthenticatedPerMinute: 10})

	rec := ask(t, h, "", "hello")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Response, "Echo: **hello**")
}

func TestAsk_Validation(t *testing.T) {
	h := newTestAgent(limits{AnonymousPerMinute: 10, AuthenticatedPerMinute: 10})

	rec := ask(t, h, "", "   ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAsk_AnonymousQuotaIsShared(t *testing.T) {
	h := newTestAgent(limits{AnonymousPerMinute: 2, AuthenticatedPerMinute: 10})

	assert.Equal(t, http.StatusOK, ask(t, h, "", "one").Code)
	assert.Equal(t, http.StatusOK, ask(t, h, "", "two").Code)

	rec := ask(t, h, "", "three")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Detail, "Sign in")

	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)

	// A signed-in caller is unaffected by the anonymous quota.
	assert.Equal(t, http.StatusOK, ask(t, h, "tok-a", "hi").Code)
}

func TestAsk_PerTokenQuotas(t *testing.T) {
	h := newTestAgent(limits{AnonymousPerMinute: 1, AuthenticatedPerMinute: 1})

	assert.Equal(t, http.StatusOK, ask(t, h, "tok-a", "one").Code)
	assert.Equal(t, http.StatusTooManyRequests, ask(t, h, "tok-a", "two").Code)
	assert.Equal(t, http.StatusOK, ask(t, h, "tok-b", "one").Code)
}

func TestAsk_ZeroLimitIsUnlimited(t *testing.T) {
	h := newTestAgent(limits{})

	for i := range 20 {
		assert.Equal(t, http.StatusOK, ask(t, h, "", "hi").Code, "request %d", i)
	}
}

func TestEchoReply(t *testing.T) {
	assert.Contains(t, echoReply("show me a list"), "- First item")
	assert.Contains(t, echoReply("hi"), "Echo: **hi**")
}
