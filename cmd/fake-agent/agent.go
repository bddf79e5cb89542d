// ABOUTME: HTTP handler for the fake agent's POST /ask endpoint
// ABOUTME: Tiered rate limiting: one shared anonymous quota, one quota per bearer token

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limits are request limits per minute. Burst equals the per-minute limit.
type limits struct {
	AnonymousPerMinute     int
	AuthenticatedPerMinute int
}

type askRequest struct {
	Message string `json:"message"`
}

type askResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type agent struct {
	limits    limits
	delay     time.Duration
	anonymous *rate.Limiter
	logger    *slog.Logger

	mu     sync.Mutex
	tokens map[string]*rate.Limiter
}

func newAgent(l limits, delay time.Duration, logger *slog.Logger) *agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &agent{
		limits:    l,
		delay:     delay,
		anonymous: newLimiter(l.AnonymousPerMinute),
		logger:    logger.With("component", "fake-agent"),
		tokens:    make(map[string]*rate.Limiter),
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func (a *agent) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", a.handleAsk)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// limiterFor returns the caller's limiter and whether the caller is anonymous.
func (a *agent) limiterFor(r *http.Request) (*rate.Limiter, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return a.anonymous, true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	lim, exists := a.tokens[token]
	if !exists {
		lim = newLimiter(a.limits.AuthenticatedPerMinute)
		a.tokens[token] = lim
	}
	return lim, false
}

func (a *agent) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "method not allowed"})
		return
	}

	lim, anonymous := a.limiterFor(r)
	res := lim.Reserve()
	if wait := res.Delay(); wait > 0 {
		res.Cancel()
		a.refuse(w, wait, anonymous)
		return
	}

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "message is required"})
		return
	}

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-r.Context().Done():
			return
		}
	}

	a.logger.Info("answering", "anonymous", anonymous, "message_len", len(req.Message))
	writeJSON(w, http.StatusOK, askResponse{Response: echoReply(req.Message)})
}

func (a *agent) refuse(w http.ResponseWriter, wait time.Duration, anonymous bool) {
	secs := int(math.Ceil(wait.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(secs))

	detail := fmt.Sprintf("Rate limit of %d requests per minute reached.", a.limits.AuthenticatedPerMinute)
	if anonymous {
		detail = fmt.Sprintf("Guest rate limit of %d requests per minute reached. Sign in for a higher limit.", a.limits.AnonymousPerMinute)
	}

	a.logger.Warn("rate limited", "anonymous", anonymous, "retry_after", secs)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}
