// ABOUTME: Tests for gateway construction, health endpoints and lifecycle
// ABOUTME: Covers each session strategy and a full Run/cancel cycle on a TCP listener

package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/courier-gateway/internal/config"
	"github.com/2389/courier-gateway/internal/session"
	"github.com/2389/courier-gateway/internal/store"
)

func TestNew_SessionStrategies(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		wantType any
	}{
		{name: "jwt", mutate: func(c *config.Config) {}, wantType: &session.Codec{}},
		{name: "none", mutate: func(c *config.Config) { c.Session.Strategy = config.StrategyNone }, wantType: session.Disabled{}},
		{
			name: "database",
			mutate: func(c *config.Config) {
				c.Session.Strategy = config.StrategyDatabase
				c.Database.Path = filepath.Join(t.TempDir(), "sessions.db")
			},
			wantType: &store.SQLiteStore{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig("http://127.0.0.1:1/ask")
			tt.mutate(cfg)

			gw := newTestGateway(t, cfg)
			if got, want := fmt.Sprintf("%T", gw.source), fmt.Sprintf("%T", tt.wantType); got != want {
				t.Errorf("source type = %s, want %s", got, want)
			}
		})
	}
}

func TestNew_RejectsWeakSecret(t *testing.T) {
	cfg := newTestConfig("http://127.0.0.1:1/ask")
	cfg.Session.Secret = "short"

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected error for weak session secret")
	}
}

func TestHandleHealth(t *testing.T) {
	gw := newTestGateway(t, newTestConfig("http://127.0.0.1:1/ask"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("expected body 'OK', got %q", rec.Body.String())
	}
}

func TestHandleReady_Database(t *testing.T) {
	cfg := newTestConfig("http://127.0.0.1:1/ask")
	cfg.Session.Strategy = config.StrategyDatabase
	cfg.Database.Path = filepath.Join(t.TempDir(), "sessions.db")
	gw := newTestGateway(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "database") {
		t.Errorf("expected strategy in body, got %q", rec.Body.String())
	}

	// A closed store is no longer ready.
	gw.store.Close()
	rec = httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 after store close, got %d", rec.Code)
	}
}

func TestDatabaseStrategy_ResolvesStoredSession(t *testing.T) {
	down := &fakeDownstream{status: http.StatusOK, body: `{"response":"ok"}`}
	srv := httptest.NewServer(down)
	defer srv.Close()

	cfg := newTestConfig(srv.URL)
	cfg.Session.Strategy = config.StrategyDatabase
	cfg.Database.Path = filepath.Join(t.TempDir(), "sessions.db")
	gw := newTestGateway(t, cfg)

	ctx := context.Background()
	if err := gw.store.UpsertUser(ctx, &session.User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := gw.store.CreateSession(ctx, &store.SessionRecord{
		ID:          "opaque-session-id",
		UserID:      "u1",
		AccessToken: "db-token",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rec := postChat(t, gw, turnsBody(t, "hi"), &http.Cookie{Name: session.DefaultCookieName, Value: "opaque-session-id"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := down.lastAuth.Load(); got != "Bearer db-token" {
		t.Errorf("downstream Authorization = %v, want Bearer db-token", got)
	}
}

func TestDatabaseStrategy_StoreFaultIsTransportError(t *testing.T) {
	down := &fakeDownstream{status: http.StatusOK, body: `{"response":"ok"}`}
	srv := httptest.NewServer(down)
	defer srv.Close()

	cfg := newTestConfig(srv.URL)
	cfg.Session.Strategy = config.StrategyDatabase
	cfg.Database.Path = filepath.Join(t.TempDir(), "sessions.db")
	gw := newTestGateway(t, cfg)
	gw.store.Close()

	rec := postChat(t, gw, turnsBody(t, "hi"), &http.Cookie{Name: session.DefaultCookieName, Value: "any"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session lookup failed") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if down.calls.Load() != 0 {
		t.Errorf("downstream should not be called on resolver fault")
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := newTestConfig("http://127.0.0.1:1/ask")
	cfg.Server.HTTPAddr = addr
	gw, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("gateway never became reachable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	if _, err := resolveTailscaleAuthKey(""); err == nil {
		t.Error("expected error without auth key")
	}

	t.Setenv("TS_AUTHKEY", "tskey-env")
	if got, _ := resolveTailscaleAuthKey(""); got != "tskey-env" {
		t.Errorf("got %q, want env key", got)
	}
	if got, _ := resolveTailscaleAuthKey("tskey-config"); got != "tskey-config" {
		t.Errorf("got %q, want config key", got)
	}
}

func TestResolveTailscaleStateDir(t *testing.T) {
	if got, _ := resolveTailscaleStateDir("/custom"); got != "/custom" {
		t.Errorf("got %q, want /custom", got)
	}
	got, err := resolveTailscaleStateDir("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(got, filepath.Join("courier-gateway", "tailscale")) {
		t.Errorf("unexpected default state dir %q", got)
	}
}
