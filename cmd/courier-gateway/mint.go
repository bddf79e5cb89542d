// ABOUTME: Session tooling commands for local development
// ABOUTME: mint-session issues a session token for the configured strategy; prune-sessions expires rows

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/courier-gateway/internal/config"
	"github.com/2389/courier-gateway/internal/session"
	"github.com/2389/courier-gateway/internal/store"
)

// mintOptions describes the identity a minted session belongs to.
type mintOptions struct {
	Email       string
	Name        string
	AccessToken string
}

// parseMintArgs supports both "--flag value" and "--flag=value" formats.
func parseMintArgs(args []string) (mintOptions, error) {
	var opts mintOptions
	targets := map[string]*string{
		"--email":        &opts.Email,
		"--name":         &opts.Name,
		"--access-token": &opts.AccessToken,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return opts, fmt.Errorf("unexpected argument: %s", arg)
		}
		name, value, hasValue := strings.Cut(arg, "=")
		target, ok := targets[name]
		if !ok {
			return opts, fmt.Errorf("unknown flag: %s", name)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		*target = strings.TrimSpace(value)
	}

	if opts.Email == "" {
		return opts, errors.New("--email flag is required")
	}
	if !strings.Contains(opts.Email, "@") {
		return opts, fmt.Errorf("invalid email: %s", opts.Email)
	}
	return opts, nil
}

// mintSession issues a session token for the configured strategy: a signed
// JWT for "jwt", an opaque stored session id for "database".
func mintSession(ctx context.Context, cfg *config.Config, opts mintOptions) (string, error) {
	switch cfg.Session.Strategy {
	case config.StrategyJWT:
		codec, err := session.NewCodec([]byte(cfg.Session.Secret))
		if err != nil {
			return "", fmt.Errorf("creating session codec: %w", err)
		}
		s := &session.Session{
			User: session.User{
				ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+opts.Email)).String(),
				Email: opts.Email,
				Name:  opts.Name,
			},
			AccessToken: opts.AccessToken,
		}
		return codec.Encode(s, cfg.Session.TTL)

	case config.StrategyDatabase:
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return "", fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()
		return mintStoredSession(ctx, s, opts, cfg.Session.TTL)

	default:
		return "", fmt.Errorf("session strategy %q does not issue sessions", cfg.Session.Strategy)
	}
}

func mintStoredSession(ctx context.Context, s *store.SQLiteStore, opts mintOptions, ttl time.Duration) (string, error) {
	user, err := s.GetUserByEmail(ctx, opts.Email)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		user = &session.User{ID: uuid.New().String(), Email: opts.Email}
	case err != nil:
		return "", err
	}
	if opts.Name != "" {
		user.Name = opts.Name
	}
	if err := s.UpsertUser(ctx, user); err != nil {
		return "", err
	}

	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	now := time.Now()
	rec := &store.SessionRecord{
		ID:          id,
		UserID:      user.ID,
		AccessToken: opts.AccessToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.CreateSession(ctx, rec); err != nil {
		return "", err
	}
	return id, nil
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func runMintSession(ctx context.Context, args []string) error {
	opts, err := parseMintArgs(args)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	token, err := mintSession(ctx, cfg, opts)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	green.Printf("  ✓ Session issued for %s (%s strategy, expires in %s)\n", opts.Email, cfg.Session.Strategy, cfg.Session.TTL)
	if opts.AccessToken == "" {
		color.New(color.FgYellow).Println("    no access token: downstream calls will be anonymous")
	}
	fmt.Println()
	cyan.Printf("  Cookie %s:\n", cfg.Session.CookieName)
	fmt.Println(token)
	return nil
}

func runPruneSessions(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Session.Strategy != config.StrategyDatabase {
		return fmt.Errorf("prune-sessions requires the database session strategy, configured: %s", cfg.Session.Strategy)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	n, err := s.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d expired session(s)\n", n)
	return nil
}
