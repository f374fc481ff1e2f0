package auth

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

const issuer = "tenant-platform"

type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, blacklist Blacklist) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  blacklist,
		now:        time.Now,
	}
}

// Issue signs an access and a refresh token for principal acting as role.
// Tenant claims are only embedded for tenant principals, and only when tc is
// the principal's own tenant.
func (s *TokenService) Issue(ctx context.Context, principal *domain.Principal, tc domain.TenantContext, role string) (*TokenPair, error) {
	if !slices.Contains(principal.Roles, role) {
		return nil, domain.NewError(domain.CodePermissionDenied, "principal does not hold role %q", role)
	}

	claims := Claims{Role: role, Roles: principal.Roles}
	claims.Subject = principal.ID

	if !principal.IsPlatform() {
		if tc.IsPlatform() || tc.TenantID != *principal.TenantID {
			return nil, domain.NewError(domain.CodeTenantConflict, "principal belongs to another tenant")
		}
		tenantID, slug := tc.TenantID, tc.Slug
		claims.TenantID = &tenantID
		claims.TenantSlug = &slug
	}

	return s.issuePair(claims)
}

func (s *TokenService) issuePair(base Claims) (*TokenPair, error) {
	now := s.now()

	access := base
	access.TokenType = TokenTypeAccess
	access.RegisteredClaims = s.registered(base.Subject, now, s.accessTTL)

	refresh := base
	refresh.TokenType = TokenTypeRefresh
	refresh.RegisteredClaims = s.registered(base.Subject, now, s.refreshTTL)

	accessToken, err := s.sign(&access)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sign(&refresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.accessTTL.Seconds()),
		AccessExpiresAt:  access.ExpiresAt.Time,
		RefreshExpiresAt: refresh.ExpiresAt.Time,
	}, nil
}

func (s *TokenService) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", domain.WrapError(domain.CodeInternal, "failed to sign token", err)
	}
	return signed, nil
}

// parse checks signature, algorithm and expiry. It does not consult the
// blacklist.
func (s *TokenService) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, domain.NewTokenError(domain.DetailExpired, err)
		}
		return nil, domain.NewTokenError(domain.DetailMalformed, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, domain.NewTokenError(domain.DetailMalformed, errors.New("token has no id or subject"))
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return nil, domain.NewTokenError(domain.DetailMalformed, errors.New("unknown token type"))
	}
	if (claims.TenantID == nil) != (claims.TenantSlug == nil) {
		return nil, domain.NewTokenError(domain.DetailMalformed, errors.New("tenant claims are incomplete"))
	}
	return claims, nil
}

// Validate returns the claims of a well-signed, unexpired, unrevoked token of
// either type. A blacklist that cannot be reached rejects the token.
func (s *TokenService) Validate(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, "token blacklist unavailable", err)
	}
	if revoked {
		return nil, domain.NewTokenError(domain.DetailRevoked, nil)
	}
	return claims, nil
}

// ValidateAccess is Validate restricted to access tokens.
func (s *TokenService) ValidateAccess(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, domain.NewTokenError(domain.DetailMalformed, errors.New("not an access token"))
	}
	return claims, nil
}

// Refresh rotates a refresh token. The old token is revoked with SETNX before
// the new pair is signed, so of several concurrent calls with the same token
// exactly one succeeds and the others see Revoked.
func (s *TokenService) Refresh(ctx context.Context, raw string) (*TokenPair, *Claims, error) {
	claims, err := s.Validate(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, nil, domain.NewTokenError(domain.DetailMalformed, errors.New("not a refresh token"))
	}

	won, err := s.blacklist.Claim(ctx, claims.ID, claims.Remaining(s.now()))
	if err != nil {
		return nil, nil, domain.WrapError(domain.CodeInternal, "token blacklist unavailable", err)
	}
	if !won {
		return nil, nil, domain.NewTokenError(domain.DetailRevoked, nil)
	}

	pair, err := s.issuePair(Claims{
		Role:       claims.Role,
		Roles:      claims.Roles,
		TenantID:   claims.TenantID,
		TenantSlug: claims.TenantSlug,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: claims.Subject,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return pair, claims, nil
}

// Revoke blacklists a token until it would have expired anyway. Revoking an
// expired or already revoked token is a no-op.
func (s *TokenService) Revoke(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.parse(raw)
	if errors.Is(err, domain.ErrTokenExpired) {
		return claims, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.blacklist.Revoke(ctx, claims.ID, claims.Remaining(s.now())); err != nil {
		return nil, domain.WrapError(domain.CodeInternal, "token blacklist unavailable", err)
	}
	return claims, nil
}
