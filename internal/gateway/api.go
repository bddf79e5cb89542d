// ABOUTME: HTTP API handlers for chat forwarding and session introspection
// ABOUTME: Maps chat.Response outcomes onto status codes and JSON bodies

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/2389/courier-gateway/internal/auth"
	"github.com/2389/courier-gateway/internal/chat"
)

// DebugResponse is returned by GET /api/auth/debug.
type DebugResponse struct {
	Strategy       string            `json:"strategy"`
	Authenticated  bool              `json:"authenticated"`
	UserID         string            `json:"user_id,omitempty"`
	HasAccessToken bool              `json:"has_access_token"`
	Headers        map[string]string `json:"headers"`
	Error          string            `json:"error,omitempty"`
}

// handleChat handles POST /api/chat.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := parseChatRequest(w, r)
	if err != nil {
		g.logger.Debug("rejecting chat request", "error", err)
		g.writeResponse(w, chat.Failed(chat.KindInvalidInput, chat.ErrNoTurns.Error()))
		return
	}

	g.writeResponse(w, g.handler.Handle(r.Context(), req, auth.RequestScope(r)))
}

// parseChatRequest decodes the inbound turn list.
func parseChatRequest(w http.ResponseWriter, r *http.Request) (*chat.Request, error) {
	var req chat.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (g *Gateway) writeResponse(w http.ResponseWriter, resp chat.Response) {
	g.sendJSON(w, resp.StatusCode(), resp.Body())
}

// handleSession handles GET /api/auth/session. It answers the session JSON
// or null, which is what the client-context resolver reads.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ac := auth.FromContext(r.Context())
	if ac != nil && ac.Err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	if !ac.Authenticated() {
		g.sendJSON(w, http.StatusOK, nil)
		return
	}
	g.sendJSON(w, http.StatusOK, ac.Session)
}

// handleDebug handles GET /api/auth/debug: what the bridge would send
// downstream for this caller, with the credential redacted.
func (g *Gateway) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := DebugResponse{Strategy: g.config.Session.Strategy}
	ac := auth.FromContext(r.Context())
	switch {
	case ac != nil && ac.Err != nil:
		resp.Error = ac.Err.Error()
	case ac.Authenticated():
		resp.Authenticated = true
		resp.UserID = ac.Session.User.ID
		resp.HasAccessToken = ac.Session.HasAccessToken()
	}

	var cred auth.Credential
	if ac != nil {
		cred = auth.CredentialFor(ac.Session)
	}
	resp.Headers = auth.BuildHeaders(cred).Redacted()

	g.sendJSON(w, http.StatusOK, resp)
}

// handleUser handles GET /api/user. RequireSession has already rejected
// anonymous callers.
func (g *Gateway) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	g.sendJSON(w, http.StatusOK, auth.FromContext(r.Context()).Session.User)
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to write response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}
