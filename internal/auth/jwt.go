package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"grc-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrSecretRequired = errors.New("JWT_SECRET is required")
	// ErrInvalidToken wraps every verification failure; callers only need 401.
	ErrInvalidToken = errors.New("invalid token")
)

// clockSkew is tolerated on exp/iat so tokens from a slightly fast identity
// provider are not rejected.
const clockSkew = 30 * time.Second

// Manager signs and verifies HS256 tokens shared with the identity provider.
type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	opts       []jwt.ParserOption
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrSecretRequired
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		opts:       opts,
	}, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Subject is who a token is minted for. The service never authenticates
// credentials; tokens come from the identity provider or grcctl in development.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// IssueAccess mints a single access token.
func (m *Manager) IssueAccess(now time.Time, sub Subject) (string, error) {
	if sub.UserID == "" || sub.Role == "" {
		return "", errors.New("access token needs a user id and a role")
	}
	return m.issue(now, TokenTypeAccess, sub, m.accessTTL)
}

// IssuePair mints an access token and a role-less refresh token.
func (m *Manager) IssuePair(now time.Time, sub Subject) (TokenPair, error) {
	access, err := m.IssueAccess(now, sub)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.issue(now, TokenTypeRefresh, Subject{UserID: sub.UserID, Email: sub.Email}, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, time claims, issuer/audience when configured, and
// the token type. Tokens that only carry the standard "sub" claim are accepted
// with sub as the user id.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	opts := append([]jwt.ParserOption{jwt.WithTimeFunc(func() time.Time { return now })}, m.opts...)
	parser := jwt.NewParser(opts...)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))

	switch {
	case claims.TokenType != expected:
		return Claims{}, fmt.Errorf("%w: token_type %q, want %q", ErrInvalidToken, claims.TokenType, expected)
	case claims.UserID == "":
		return Claims{}, fmt.Errorf("%w: no user id", ErrInvalidToken)
	case expected == TokenTypeAccess && claims.Role == "":
		return Claims{}, fmt.Errorf("%w: access token without role", ErrInvalidToken)
	}
	return claims, nil
}

func (m *Manager) issue(now time.Time, tokenType TokenType, sub Subject, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    sub.UserID,
		Email:     sub.Email,
		Role:      sub.Role,
		TokenType: tokenType,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
