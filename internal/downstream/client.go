// ABOUTME: HTTP client that forwards a single message to the downstream agent service
// ABOUTME: Wraps each call in a client span and returns the raw reply for classification

package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/courier-gateway/internal/auth"
)

// DefaultURL is used when no downstream endpoint is configured.
const DefaultURL = "https://culltique-joel-production.up.railway.app/langgraph/ask"

// maxReplyBody caps how much of a downstream reply is read.
const maxReplyBody = 1 << 20

const tracerName = "github.com/2389/courier-gateway/internal/downstream"

// askRequest is the wire body sent downstream.
type askRequest struct {
	Message string `json:"message"`
}

// Reply is the raw downstream response.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client talks to the downstream agent service.
type Client struct {
	url        string
	host       string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// New creates a downstream client. An empty endpoint uses DefaultURL and a nil
// httpClient uses a client without its own timeout; callers bound each call
// with the context deadline.
func New(endpoint string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing downstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("downstream url must be http or https, got %q", endpoint)
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url:        endpoint,
		host:       u.Host,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
		logger:     logger.With("component", "downstream"),
	}, nil
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.url
}

// Ask forwards one message. A non-nil error means no reply was received
// (timeout, refused connection, cancelled context); any HTTP status is
// returned as a Reply.
func (c *Client) Ask(ctx context.Context, message string, headers auth.Headers) (*Reply, error) {
	ctx, span := c.tracer.Start(ctx, "downstream.ask",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("server.address", c.host),
			attribute.Bool("courier.authenticated", headers.Authenticated()),
		),
	)
	defer span.End()

	body, err := json.Marshal(askRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	headers.Apply(req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.logger.Warn("downstream call failed",
			"error", err,
			"duration", time.Since(start),
			"headers", headers.Redacted(),
		)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading body")
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	c.logger.Debug("downstream replied",
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration", time.Since(start),
		"authenticated", headers.Authenticated(),
	)

	return &Reply{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
