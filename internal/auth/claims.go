package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the token payload. user_id may be absent on identity-provider
// tokens, in which case Verify fills it from sub. Email is optional; audit
// entries fall back to the user id.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
}

// Identity is the request session for these claims seen from ip.
func (c Claims) Identity(ip string) Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role, IP: ip}
}
