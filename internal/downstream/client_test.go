// ABOUTME: Tests for the downstream HTTP client
// ABOUTME: Uses httptest to check wire format, header forwarding and fault reporting

package downstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/courier-gateway/internal/auth"
)

func TestNew_DefaultURL(t *testing.T) {
	c, err := New("", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.URL())
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com/ask", nil, nil)
	assert.Error(t, err)

	_, err = New("://nope", nil, nil)
	assert.Error(t, err)
}

func TestAsk_SendsMessageAndHeaders(t *testing.T) {
	var (
		gotBody   map[string]any
		gotCT     string
		gotAuth   string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("X-Test", "yes")
		w.Write([]byte(`{"response":"hi"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)

	reply, err := c.Ask(context.Background(), "Where is order 42?", auth.BuildHeaders("tok"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, map[string]any{"message": "Where is order 42?"}, gotBody)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, http.StatusOK, reply.StatusCode)
	assert.Equal(t, "yes", reply.Header.Get("X-Test"))
	assert.JSONEq(t, `{"response":"hi"}`, string(reply.Body))
}

func TestAsk_AnonymousHasNoAuthorization(t *testing.T) {
	var sawAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Header["Authorization"]
		sawAuth.Store(ok)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)

	_, err = c.Ask(context.Background(), "hi", auth.BuildHeaders(""))
	require.NoError(t, err)
	assert.False(t, sawAuth.Load())
}

func TestAsk_ErrorStatusIsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)

	reply, err := c.Ask(context.Background(), "hi", auth.BuildHeaders(""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, reply.StatusCode)
	assert.Equal(t, "slow down", string(reply.Body))
}

func TestAsk_ExactlyOneCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)

	_, err = c.Ask(context.Background(), "hi", auth.BuildHeaders(""))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAsk_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c, err := New(endpoint, nil, nil)
	require.NoError(t, err)

	reply, err := c.Ask(context.Background(), "hi", auth.BuildHeaders(""))
	assert.Error(t, err)
	assert.Nil(t, reply)
}

func TestAsk_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Ask(ctx, "hi", auth.BuildHeaders(""))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
