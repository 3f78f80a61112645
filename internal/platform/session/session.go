// Package session issues and verifies the signed session tokens that
// identify a learner to the reverification service.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/reverify/internal/platform/errors"
)

const (
	// CookieName carries the session token on browser requests.
	CookieName = "reverify_session"
	// DefaultIssuer is used when Config.Issuer is blank.
	DefaultIssuer = "reverify"
	// DefaultTTL bounds issued token lifetime when Config.TTL is unset.
	DefaultTTL = 12 * time.Hour

	minKeyBytes = 32
)

// Config configures token signing and verification.
type Config struct {
	Key    []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Claims is the verified view of a session token.
type Claims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// DecodeKey parses a hex-encoded signing key as configured in the
// environment.
func DecodeKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("session key is required")
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode session key: %w", err)
	}
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("session key must be at least %d bytes", minKeyBytes)
	}
	return key, nil
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Key) < minKeyBytes {
		return nil, fmt.Errorf("session key must be at least %d bytes", minKeyBytes)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)
	return &Manager{key: key, issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue signs a token for userID.
func (m *Manager) Issue(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := m.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and lifetime and returns the claims.
func (m *Manager) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.EK(apperrors.KindUnauthorized, "reverify.session.missing", "session is required")
	}
	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.EK(apperrors.KindUnauthorized, "reverify.session.invalid", "session subject is required")
	}
	claims := Claims{UserID: parsed.Subject, ExpiresAt: parsed.ExpiresAt.Time.UTC()}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.Wrap(apperrors.KindUnauthorized, "session is expired", err)
	}
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.Wrap(apperrors.KindUnauthorized, "session signature is invalid", err)
	}
	return apperrors.Wrap(apperrors.KindUnauthorized, "session is invalid", err)
}

type contextKey struct{}

// WithClaims stores verified claims on ctx.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// FromContext returns the verified claims stored on ctx.
func FromContext(ctx context.Context) (Claims, bool) {
	if ctx == nil {
		return Claims{}, false
	}
	claims, ok := ctx.Value(contextKey{}).(Claims)
	return claims, ok
}
