// ABOUTME: Client-side session query against the gateway's session endpoint
// ABOUTME: ClientState makes the browser-held cookie an explicit, injectable value

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxSessionBody caps how much of the session endpoint response is read.
const maxSessionBody = 64 << 10

// ClientState is the ambient session a client holds: the cookie it was issued
// and where to ask about it. It is passed explicitly instead of being looked
// up from globals.
type ClientState struct {
	// Endpoint is the session endpoint URL, e.g. http://host/api/auth/session.
	Endpoint string
	// CookieName defaults to DefaultCookieName.
	CookieName string
	// Token is the session cookie value. Empty means signed out.
	Token string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Cookie returns the session cookie to attach to outgoing requests, or nil
// when the client is signed out.
func (c *ClientState) Cookie() *http.Cookie {
	if c == nil || c.Token == "" {
		return nil
	}
	name := c.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return &http.Cookie{Name: name, Value: c.Token}
}

// Fetch asks the session endpoint for the current session.
// Returns (nil, nil) when signed out or when the endpoint answers null.
func (c *ClientState) Fetch(ctx context.Context) (*Session, error) {
	cookie := c.Cookie()
	if cookie == nil {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating session request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: session endpoint returned status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSessionBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading session: %v", ErrUnavailable, err)
	}
	return parseSessionBody(body)
}

// parseSessionBody decodes the session endpoint payload.
func parseSessionBody(body []byte) (*Session, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s.User.ID == "" {
		return nil, nil
	}
	return &s, nil
}
