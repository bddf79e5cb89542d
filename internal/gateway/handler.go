// ABOUTME: Gateway request handler that forwards the latest chat turn downstream
// ABOUTME: Validates, resolves the caller's credential, makes one call and classifies the reply

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/courier-gateway/internal/auth"
	"github.com/2389/courier-gateway/internal/chat"
	"github.com/2389/courier-gateway/internal/downstream"
)

// FallbackReply is returned when the downstream answers 2xx without text.
const FallbackReply = "Sorry, I could not process your request."

const (
	anonymousLimitGuidance     = "You have reached the request limit for guests. Sign in for a higher limit, or try again later."
	authenticatedLimitGuidance = "You have reached your request limit. Please try again later."
)

// replyFields are checked in order for the assistant text.
var replyFields = []string{"response", "message", "content"}

// Asker sends one message downstream.
type Asker interface {
	Ask(ctx context.Context, message string, headers auth.Headers) (*downstream.Reply, error)
}

// Handler turns a chat request into exactly one downstream call.
// It holds no mutable state and is safe for concurrent use.
type Handler struct {
	resolver   auth.Resolver
	downstream Asker
	logger     *slog.Logger
}

// NewHandler creates a handler. The resolver should be the server-context
// resolver; the handler never builds its own.
func NewHandler(resolver auth.Resolver, asker Asker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		resolver:   resolver,
		downstream: asker,
		logger:     logger.With("component", "handler"),
	}
}

// Handle validates the request, forwards its latest turn and classifies the
// outcome. Deadlines come from ctx.
func (h *Handler) Handle(ctx context.Context, req *chat.Request, scope auth.Scope) chat.Response {
	if err := req.Validate(); err != nil {
		return chat.Failed(chat.KindInvalidInput, err.Error())
	}

	cred, err := h.resolver.Resolve(ctx, scope)
	if err != nil {
		h.logger.Error("credential resolution failed", "error", err)
		return chat.Failed(chat.KindTransportError, "session lookup failed: "+err.Error())
	}
	headers := auth.BuildHeaders(cred)

	reply, err := h.downstream.Ask(ctx, req.Latest(), headers)
	if err != nil {
		resp := chat.Failed(chat.KindTransportError, describeTransportError(err))
		h.logOutcome(resp, 0, cred.Present())
		return resp
	}

	resp := classify(reply, cred.Present())
	h.logOutcome(resp, reply.StatusCode, cred.Present())
	return resp
}

func (h *Handler) logOutcome(resp chat.Response, status int, authenticated bool) {
	attrs := []any{
		"outcome", resp.Outcome.String(),
		"status", status,
		"authenticated", authenticated,
	}
	switch resp.Outcome {
	case chat.OutcomeOK:
		h.logger.Info("chat forwarded", attrs...)
	case chat.OutcomeRateLimited:
		h.logger.Warn("chat rate limited", attrs...)
	default:
		h.logger.Error("chat failed", append(attrs, "kind", string(resp.Kind), "message", resp.Message)...)
	}
}

// classify maps a downstream reply onto a Response.
func classify(reply *downstream.Reply, authenticated bool) chat.Response {
	switch {
	case reply.StatusCode == http.StatusTooManyRequests:
		return chat.RateLimited(rateLimitGuidance(reply, authenticated))
	case reply.StatusCode < 200 || reply.StatusCode >= 300:
		return chat.Failed(chat.KindDownstreamError, fmt.Sprintf("Backend service unavailable: %d", reply.StatusCode))
	}

	var decoded any
	if err := json.Unmarshal(reply.Body, &decoded); err != nil || decoded == nil {
		return chat.Failed(chat.KindDownstreamError, "invalid response body from backend")
	}
	// Any other JSON value without a usable reply field gets the fallback.
	body, _ := decoded.(map[string]any)
	if text := firstString(body, replyFields...); text != "" {
		return chat.OK(text)
	}
	return chat.OK(FallbackReply)
}

// rateLimitGuidance prefers the downstream's own explanation and falls back
// to a template that depends on whether the caller is signed in.
func rateLimitGuidance(reply *downstream.Reply, authenticated bool) string {
	var body map[string]any
	_ = json.Unmarshal(reply.Body, &body)

	guidance := firstString(body, "message", "detail")
	if guidance == "" {
		guidance = anonymousLimitGuidance
		if authenticated {
			guidance = authenticatedLimitGuidance
		}
	}

	if after := strings.TrimSpace(reply.Header.Get("Retry-After")); after != "" {
		if secs, err := strconv.Atoi(after); err == nil {
			guidance += fmt.Sprintf(" Retry after %d seconds.", secs)
		} else {
			guidance += " Retry after " + after + "."
		}
	}
	return guidance
}

// firstString returns the first non-blank string value among keys.
func firstString(body map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := body[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func describeTransportError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request to backend timed out"
	case errors.Is(err, context.Canceled):
		return "request to backend was cancelled"
	default:
		return err.Error()
	}
}
