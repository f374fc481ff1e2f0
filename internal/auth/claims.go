package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the signed claim set of both token types. TenantID and
// TenantSlug are null for platform principals.
type Claims struct {
	Role       string    `json:"role"`
	Roles      []string  `json:"roles,omitempty"`
	TenantID   *string   `json:"tenant_id"`
	TenantSlug *string   `json:"tenant_slug"`
	TokenType  TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *Claims) PrincipalID() string {
	return c.Subject
}

func (c *Claims) IsPlatform() bool {
	return c.TenantID == nil
}

// Remaining is how long the token stays valid after now.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// AuthSubject converts validated claims into the identity used for
// authorization. The primary role is always included.
func (c *Claims) AuthSubject() domain.Subject {
	roles := make([]string, 0, len(c.Roles)+1)
	seen := make(map[string]bool, len(c.Roles)+1)
	for _, r := range append([]string{c.Role}, c.Roles...) {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return domain.Subject{
		PrincipalID: c.Subject,
		TenantID:    c.TenantID,
		TenantSlug:  c.TenantSlug,
		Roles:       roles,
	}
}

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
