// ABOUTME: Gateway orchestrator that wires the session source, handler and HTTP server
// ABOUTME: Manages listeners (TCP or tailnet), telemetry and graceful shutdown

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/courier-gateway/internal/auth"
	"github.com/2389/courier-gateway/internal/config"
	"github.com/2389/courier-gateway/internal/downstream"
	"github.com/2389/courier-gateway/internal/session"
	"github.com/2389/courier-gateway/internal/store"
	"github.com/2389/courier-gateway/internal/telemetry"
)

// maxRequestBody caps inbound chat request bodies.
const maxRequestBody = 1 << 20

// Gateway orchestrates the courier-gateway server components.
type Gateway struct {
	config      *config.Config
	source      session.Source
	store       *store.SQLiteStore // nil unless the database strategy is used
	handler     *Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// telemetryShutdown flushes pending spans on exit
	telemetryShutdown telemetry.ShutdownFunc
}

// newSessionSource builds the session source for the configured strategy.
func newSessionSource(cfg *config.Config) (session.Source, *store.SQLiteStore, error) {
	switch cfg.Session.Strategy {
	case config.StrategyJWT:
		codec, err := session.NewCodec([]byte(cfg.Session.Secret))
		if err != nil {
			return nil, nil, fmt.Errorf("creating session codec: %w", err)
		}
		return codec, nil, nil
	case config.StrategyDatabase:
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, s, nil
	case config.StrategyNone, "":
		return session.Disabled{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session strategy %q", cfg.Session.Strategy)
	}
}

// New creates a gateway from configuration. Telemetry is set up here so the
// downstream client's tracer comes from the configured provider.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	shutdownTelemetry, err := telemetry.Setup(context.Background(), telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	source, sqlStore, err := newSessionSource(cfg)
	if err != nil {
		_ = shutdownTelemetry(context.Background())
		return nil, err
	}

	client, err := downstream.New(cfg.Downstream.URL, nil, logger)
	if err != nil {
		closeStore(sqlStore)
		_ = shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("creating downstream client: %w", err)
	}

	resolver, err := auth.NewResolver(auth.ExecServer, auth.ResolverOptions{
		Source:     source,
		CookieName: cfg.Session.CookieName,
	})
	if err != nil {
		closeStore(sqlStore)
		_ = shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	gw := &Gateway{
		config:            cfg,
		source:            source,
		store:             sqlStore,
		handler:           NewHandler(resolver, client, logger),
		logger:            logger.With("component", "gateway"),
		telemetryShutdown: shutdownTelemetry,
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("gateway configured",
		"session_strategy", cfg.Session.Strategy,
		"downstream", client.URL(),
		"timeout", cfg.Downstream.Timeout,
	)
	return gw, nil
}

// routes builds the HTTP mux. Every /api route sees the request's session
// through auth.SessionMiddleware.
func (g *Gateway) routes() http.Handler {
	withSession := auth.SessionMiddleware(g.source, g.config.Session.CookieName, g.logger)
	requireSession := auth.RequireSession()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)
	mux.Handle("/api/chat", withDeadline(g.config.Downstream.Timeout)(withSession(http.HandlerFunc(g.handleChat))))
	mux.Handle("/api/auth/session", withSession(http.HandlerFunc(g.handleSession)))
	mux.Handle("/api/auth/debug", withSession(http.HandlerFunc(g.handleDebug)))
	mux.Handle("/api/user", withSession(requireSession(http.HandlerFunc(g.handleUser))))
	return mux
}

// withDeadline bounds the whole request, session lookup included, by timeout.
// A non-positive timeout leaves the request context untouched.
func withDeadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run serves until ctx is cancelled or the server fails, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "courier-gateway", "tailscale"), nil
}

func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	return g.createTailscaleHTTPListener(tsCfg)
}

func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func closeStore(s *store.SQLiteStore) {
	if s != nil {
		_ = s.Close()
	}
}

// Shutdown stops the HTTP server and releases the store, tailnet node and
// tracer provider.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}
	if g.telemetryShutdown != nil {
		errs = appendCloseError(errs, "telemetry shutdown", g.telemetryShutdown(ctx))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// pinger is implemented by session sources backed by a database.
type pinger interface {
	Ping(ctx context.Context) error
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if p, ok := g.source.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			g.logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("session store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (sessions: %s)", g.config.Session.Strategy)
}
