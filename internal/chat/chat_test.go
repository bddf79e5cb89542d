// ABOUTME: Tests for chat request validation and response mapping
// ABOUTME: Covers blank-content rejection and the HTTP status/body contract

package chat

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
		want error
	}{
		{name: "nil request", req: nil, want: ErrNoTurns},
		{name: "no turns", req: &Request{}, want: ErrNoTurns},
		{name: "empty last content", req: &Request{Turns: []Turn{{ID: "1", Role: RoleUser, Content: ""}}}, want: ErrEmptyLastContent},
		{name: "whitespace last content", req: &Request{Turns: []Turn{{ID: "1", Role: RoleUser, Content: " \n\t "}}}, want: ErrEmptyLastContent},
		{name: "system role rejected", req: &Request{Turns: []Turn{{ID: "1", Role: "system", Content: "hi"}}}, want: ErrUnknownRole},
		{name: "missing role rejected", req: &Request{Turns: []Turn{{ID: "1", Content: "hi"}}}, want: ErrUnknownRole},
		{
			name: "unknown role on an earlier turn",
			req: &Request{Turns: []Turn{
				{ID: "1", Role: "tool", Content: "x"},
				{ID: "2", Role: RoleUser, Content: "hi"},
			}},
			want: ErrUnknownRole,
		},
		{
			name: "earlier turn empty is fine",
			req: &Request{Turns: []Turn{
				{ID: "1", Role: RoleUser, Content: ""},
				{ID: "2", Role: RoleUser, Content: "hi"},
			}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.req.Validate(), tt.want)
			if tt.want == nil {
				assert.NoError(t, tt.req.Validate())
			}
		})
	}
}

func TestRequest_Latest(t *testing.T) {
	req := &Request{Turns: []Turn{
		{ID: "1", Role: RoleUser, Content: "first"},
		{ID: "2", Role: RoleAssistant, Content: "reply"},
		{ID: "3", Role: RoleUser, Content: "second"},
	}}
	require.NoError(t, req.Validate())
	assert.Equal(t, "second", req.Latest())
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("system").Valid())
}

func TestResponse_HTTPMapping(t *testing.T) {
	tests := []struct {
		name     string
		resp     Response
		wantCode int
		wantBody string
	}{
		{
			name:     "ok",
			resp:     OK("Order 25 is out for delivery"),
			wantCode: http.StatusOK,
			wantBody: `{"content":"Order 25 is out for delivery"}`,
		},
		{
			name:     "rate limited",
			resp:     RateLimited("slow down"),
			wantCode: http.StatusTooManyRequests,
			wantBody: `{"error":"RATE_LIMIT_EXCEEDED","message":"slow down"}`,
		},
		{
			name:     "failed",
			resp:     Failed(KindTransportError, "connection refused"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Service error: connection refused"}`,
		},
		{
			name:     "invalid input is still a 500",
			resp:     Failed(KindInvalidInput, ErrNoTurns.Error()),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Service error: no messages provided or invalid format"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.resp.StatusCode())
			data, err := json.Marshal(tt.resp.Body())
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantBody, string(data))
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "rate_limited", OutcomeRateLimited.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestFromHTTP(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Response
	}{
		{name: "ok", status: 200, body: `{"content":"hello"}`, want: OK("hello")},
		{name: "ok with bad body", status: 200, body: `nope`, want: Failed(KindDownstreamError, "invalid response body from gateway")},
		{name: "rate limited", status: 429, body: `{"error":"RATE_LIMIT_EXCEEDED","message":"wait a bit"}`, want: RateLimited("wait a bit")},
		{name: "rate limited without message", status: 429, body: ``, want: RateLimited("Please try again later.")},
		{name: "failed", status: 500, body: `{"error":"Service error: Backend service unavailable: 503"}`, want: Failed(KindDownstreamError, "Backend service unavailable: 503")},
		{name: "failed without body", status: 502, body: ``, want: Failed(KindDownstreamError, "gateway returned status 502")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromHTTP(tt.status, []byte(tt.body)))
		})
	}
}

func TestFromHTTP_InvertsBody(t *testing.T) {
	for _, resp := range []Response{OK("hi"), RateLimited("later"), Failed(KindDownstreamError, "boom")} {
		data, err := json.Marshal(resp.Body())
		require.NoError(t, err)
		assert.Equal(t, resp, FromHTTP(resp.StatusCode(), data))
	}
}
