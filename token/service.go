package token

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind selects the signing namespace for a token.
type Kind string

const (
	// KindAccess is the short-TTL credential presented on each request.
	KindAccess Kind = "access"
	// KindRefresh is the long-TTL credential exchanged for a new pair.
	KindRefresh Kind = "refresh"
)

var (
	// ErrInvalidToken covers bad signatures, malformed structure, and
	// wrong-kind tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token itself is past its exp
	// claim. Session-level expiry is checked separately by the manager.
	ErrExpiredToken = errors.New("token expired")
)

// Config holds the signing material and TTLs for both token kinds.
// AccessSecret and RefreshSecret must differ; sharing a key would collapse
// the two namespaces into one.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

// Claims is the claim set embedded in both token kinds. Access and
// refresh tokens differ only in TTL and signing key, not in shape.
type Claims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	Kind      Kind   `json:"knd"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens. It holds no mutable state and is
// safe for concurrent use.
type Service struct {
	config Config
}

// NewService validates the configuration and returns a [Service].
func NewService(cfg Config) (*Service, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) < 32 {
		return nil, errors.New("access secret must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &Service{config: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.config.RefreshTTL }

// IssueAccess signs an access token binding userID (with role) to sessionID.
func (s *Service) IssueAccess(userID, role, sessionID string) (string, error) {
	return s.issue(userID, role, sessionID, KindAccess, s.config.AccessTTL, s.config.AccessSecret)
}

// IssueRefresh signs a refresh token binding userID (with role) to sessionID.
func (s *Service) IssueRefresh(userID, role, sessionID string) (string, error) {
	return s.issue(userID, role, sessionID, KindRefresh, s.config.RefreshTTL, s.config.RefreshSecret)
}

func (s *Service) issue(userID, role, sessionID string, kind Kind, ttl time.Duration, secret []byte) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("user id and session id are required")
	}

	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify parses tok, checks its signature against the key for the
// expected kind, and confirms the embedded kind matches. Returns
// [ErrExpiredToken] for structurally valid but stale tokens and
// [ErrInvalidToken] for everything else.
func (s *Service) Verify(tok string, expected Kind) (*Claims, error) {
	secret, err := s.secretFor(expected)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tok, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != expected {
		return nil, fmt.Errorf("%w: wrong token kind", ErrInvalidToken)
	}

	return claims, nil
}

// Decode extracts claims without checking the signature. Use it only on
// tokens that were already verified against a session row, e.g. to pull
// the session id out of a stored access token during logout.
func (s *Service) Decode(tok string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsExpired reports whether tok carries an exp claim in the past. A
// malformed token counts as expired.
func (s *Service) IsExpired(tok string) bool {
	claims, err := s.Decode(tok)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return time.Now().After(claims.ExpiresAt.Time)
}

func (s *Service) secretFor(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return s.config.AccessSecret, nil
	case KindRefresh:
		return s.config.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: unknown token kind", ErrInvalidToken)
	}
}
