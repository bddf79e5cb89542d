// ABOUTME: JWT session codec for the "jwt" session strategy
// ABOUTME: HS256 tokens carry the user identity and optional upstream access token

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted HMAC secret size in bytes.
const MinSecretLength = 32

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)

// Codec reads and writes HS256 session tokens.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with the given signing secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &Codec{secret: secret}, nil
}

// Lookup implements Source. Tokens that fail verification are anonymous.
func (c *Codec) Lookup(_ context.Context, token string) (*Session, error) {
	s, err := c.Decode(token)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	return s, err
}

// Decode verifies the token and extracts the session.
// Returns ErrNoSession for tokens that are unsigned, mis-signed, expired or
// unparsable, and ErrMalformed for verified tokens with bad claims.
func (c *Codec) Decode(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrMalformed)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformed)
	}

	s := &Session{User: User{ID: sub}}
	fields := []struct {
		claim string
		dst   *string
	}{
		{"email", &s.User.Email},
		{"name", &s.User.Name},
		{"picture", &s.User.Image},
		{"accessToken", &s.AccessToken},
	}
	for _, f := range fields {
		raw, present := claims[f.claim]
		if !present || raw == nil {
			continue
		}
		v, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a string", ErrMalformed, f.claim)
		}
		*f.dst = v
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.Expires = exp.Time.UTC()
	}

	return s, nil
}

// Encode signs a session token valid for ttl. Used by the provider stand-in
// and tests; the gateway itself never issues sessions.
func (c *Codec) Encode(s *Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": s.User.ID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if s.User.Email != "" {
		claims["email"] = s.User.Email
	}
	if s.User.Name != "" {
		claims["name"] = s.User.Name
	}
	if s.User.Image != "" {
		claims["picture"] = s.User.Image
	}
	if s.AccessToken != "" {
		claims["accessToken"] = s.AccessToken
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}
