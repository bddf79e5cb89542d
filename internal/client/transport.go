// ABOUTME: HTTP transport from the chat client to the gateway's chat endpoint
// ABOUTME: Maintains the conversation log and publishes fire-and-forget notifications

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389/courier-gateway/internal/auth"
	"github.com/2389/courier-gateway/internal/chat"
	"github.com/2389/courier-gateway/internal/conversation"
	"github.com/2389/courier-gateway/internal/session"
)

const (
	chatPath    = "/api/chat"
	sessionPath = "/api/auth/session"

	// maxReplyBody caps how much of a gateway reply is read.
	maxReplyBody = 1 << 20
)

// Notification prefixes shown to the user.
const (
	rateLimitPrefix = "Rate limit reached: "
	failurePrefix   = "Message failed: "
	errorTurnPrefix = "Error: "
)

// Options configures a Transport.
type Options struct {
	// GatewayURL is the gateway base URL, e.g. http://localhost:8080.
	GatewayURL string
	// State is the client-held session. Nil means signed out. An empty
	// Endpoint defaults to the gateway's session endpoint.
	State *session.ClientState
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Transport sends chat turns to the gateway on behalf of one user.
type Transport struct {
	chatURL    string
	state      *session.ClientState
	resolver   auth.Resolver
	httpClient *http.Client
	log        *conversation.Log
	notifier   *conversation.Notifier
	logger     *slog.Logger
}

// New creates a transport for the given gateway.
func New(opts Options) (*Transport, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.GatewayURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing gateway url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway url must be http or https, got %q", opts.GatewayURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resolver, err := auth.NewResolver(auth.ExecClient, auth.ResolverOptions{})
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	var state *session.ClientState
	if opts.State != nil {
		s := *opts.State
		if s.Endpoint == "" {
			s.Endpoint = base.String() + sessionPath
		}
		if s.HTTPClient == nil {
			s.HTTPClient = httpClient
		}
		state = &s
	}

	return &Transport{
		chatURL:    base.String() + chatPath,
		state:      state,
		resolver:   resolver,
		httpClient: httpClient,
		log:        conversation.NewLog(),
		notifier:   conversation.NewNotifier(logger),
		logger:     logger.With("component", "client"),
	}, nil
}

// Log returns the conversation log.
func (t *Transport) Log() *conversation.Log {
	return t.log
}

// Notifications subscribes to user notifications until ctx is cancelled.
func (t *Transport) Notifications(ctx context.Context) <-chan conversation.Notification {
	ch, _ := t.notifier.Subscribe(ctx)
	return ch
}

// Session fetches the current session, or nil when signed out.
func (t *Transport) Session(ctx context.Context) (*session.Session, error) {
	if t.state == nil {
		return nil, nil
	}
	return t.state.Fetch(ctx)
}

// Close ends every notification subscription.
func (t *Transport) Close() {
	t.notifier.Close()
}

// Send delivers content as a user turn and records the outcome.
func (t *Transport) Send(ctx context.Context, content string) chat.Response {
	if strings.TrimSpace(content) == "" {
		return chat.Failed(chat.KindInvalidInput, chat.ErrEmptyLastContent.Error())
	}

	t.log.Append(conversation.NewTurn(chat.RoleUser, content))

	resp := t.deliver(ctx)
	t.record(resp)
	return resp
}

// deliver posts the current log to the gateway.
func (t *Transport) deliver(ctx context.Context) chat.Response {
	cred, err := t.resolver.Resolve(ctx, auth.ClientScope(t.state))
	if err != nil {
		t.logger.Warn("session lookup failed", "error", err)
		return chat.Failed(chat.KindTransportError, "session lookup failed: "+err.Error())
	}

	body, err := json.Marshal(chat.Request{Turns: t.log.Turns()})
	if err != nil {
		return chat.Failed(chat.KindInvalidInput, fmt.Sprintf("encoding request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.chatURL, bytes.NewReader(body))
	if err != nil {
		return chat.Failed(chat.KindTransportError, fmt.Sprintf("creating request: %v", err))
	}
	auth.BuildHeaders(cred).Apply(req)
	req.Header.Set("Accept", "application/json")
	if cookie := t.state.Cookie(); cookie != nil {
		req.AddCookie(cookie)
	}

	httpResp, err := t.httpClient.Do(req)
	if err != nil {
		return chat.Failed(chat.KindTransportError, describeError(err))
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxReplyBody))
	if err != nil {
		return chat.Failed(chat.KindTransportError, fmt.Sprintf("reading response: %v", err))
	}

	t.logger.Debug("gateway replied",
		"status", httpResp.StatusCode,
		"authenticated", cred.Present())
	return chat.FromHTTP(httpResp.StatusCode, data)
}

// record applies an outcome to the log and the notifier.
func (t *Transport) record(resp chat.Response) {
	switch resp.Outcome {
	case chat.OutcomeOK:
		t.log.Append(conversation.NewTurn(chat.RoleAssistant, resp.Content))
	case chat.OutcomeRateLimited:
		t.notifier.Notify(conversation.LevelWarning, rateLimitPrefix+resp.Guidance)
	case chat.OutcomeFailed:
		t.log.Append(conversation.NewTurn(chat.RoleAssistant, errorTurnPrefix+resp.Message))
		t.notifier.Notify(conversation.LevelError, failurePrefix+resp.Message)
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request to gateway timed out"
	case errors.Is(err, context.Canceled):
		return "request to gateway was cancelled"
	default:
		return err.Error()
	}
}
