// ABOUTME: Normalized gateway response variant (Ok, RateLimited, Failed)
// ABOUTME: Maps each outcome onto the HTTP status and JSON body sent to callers

package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Outcome tags which variant a Response holds.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRateLimited
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind classifies a Failed response.
type ErrorKind string

const (
	KindInvalidInput    ErrorKind = "invalid_input"
	KindDownstreamError ErrorKind = "downstream_error"
	KindTransportError  ErrorKind = "transport_error"
)

// RateLimitCode is the error code carried by every rate-limited response body.
const RateLimitCode = "RATE_LIMIT_EXCEEDED"

// Response is the result of one gateway invocation. Exactly one of the
// variant fields is meaningful, selected by Outcome.
type Response struct {
	Outcome Outcome

	// Content is the assistant reply (OutcomeOK).
	Content string

	// Guidance tells the caller what to do about the limit (OutcomeRateLimited).
	Guidance string

	// Kind and Message describe the failure (OutcomeFailed).
	Kind    ErrorKind
	Message string
}

// OK builds a successful response.
func OK(content string) Response {
	return Response{Outcome: OutcomeOK, Content: content}
}

// RateLimited builds a rate-limited response.
func RateLimited(guidance string) Response {
	return Response{Outcome: OutcomeRateLimited, Guidance: guidance}
}

// Failed builds a failure response.
func Failed(kind ErrorKind, message string) Response {
	return Response{Outcome: OutcomeFailed, Kind: kind, Message: message}
}

// StatusCode returns the HTTP status the gateway answers with.
func (r Response) StatusCode() int {
	switch r.Outcome {
	case OutcomeOK:
		return http.StatusOK
	case OutcomeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Body returns the JSON body for the HTTP response.
func (r Response) Body() any {
	switch r.Outcome {
	case OutcomeOK:
		return SuccessBody{Content: r.Content}
	case OutcomeRateLimited:
		return RateLimitBody{Error: RateLimitCode, Message: r.Guidance}
	default:
		return ErrorBody{Error: errorPrefix + r.Message}
	}
}

// SuccessBody is the 200 response body.
type SuccessBody struct {
	Content string `json:"content"`
}

// ErrorBody is the 500 response body.
type ErrorBody struct {
	Error string `json:"error"`
}

// RateLimitBody is the 429 response body.
type RateLimitBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorPrefix is prepended to failure messages on the wire.
const errorPrefix = "Service error: "

// defaultGuidance is used when a 429 carries no message.
const defaultGuidance = "Please try again later."

// FromHTTP reverses StatusCode and Body, turning a gateway reply back into a
// Response. The failure kind does not travel on the wire, so every non-2xx,
// non-429 reply decodes as KindDownstreamError.
func FromHTTP(status int, body []byte) Response {
	switch {
	case status == http.StatusTooManyRequests:
		var rl RateLimitBody
		_ = json.Unmarshal(body, &rl)
		if strings.TrimSpace(rl.Message) == "" {
			return RateLimited(defaultGuidance)
		}
		return RateLimited(rl.Message)
	case status >= 200 && status < 300:
		var ok SuccessBody
		if err := json.Unmarshal(body, &ok); err != nil {
			return Failed(KindDownstreamError, "invalid response body from gateway")
		}
		return OK(ok.Content)
	default:
		var eb ErrorBody
		_ = json.Unmarshal(body, &eb)
		msg := strings.TrimPrefix(eb.Error, errorPrefix)
		if msg == "" {
			msg = fmt.Sprintf("gateway returned status %d", status)
		}
		return Failed(KindDownstreamError, msg)
	}
}
