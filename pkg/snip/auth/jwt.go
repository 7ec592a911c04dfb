package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/models"
)

var (
	ErrInvalidToken = fmt.Errorf("invalid token: %w", api.ErrUnauthenticated)
	ErrExpiredToken = fmt.Errorf("token has expired: %w", api.ErrUnauthenticated)
)

const (
	// DevSecret is used when no secret is configured. Development only.
	DevSecret = "snip-dev-secret-change-in-production"
	// DefaultTokenTTL is the validity of issued tokens.
	DefaultTokenTTL = 24 * time.Hour

	issuer = "snip"
)

// Claims represents the JWT claims
type Claims struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	SystemRole string `json:"system_role"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token service. An empty secret falls back to DevSecret.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if secret == "" {
		secret = DevSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// TTL returns the token validity duration
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Generate creates a new JWT token for a user
func (t *Tokens) Generate(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		SystemRole: string(user.SystemRole),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate validates a JWT token and returns the claims
func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Authenticate implements Authenticator for bearer tokens and cookies.
func (t *Tokens) Authenticate(_ context.Context, credential string) (*Principal, error) {
	claims, err := t.Validate(credential)
	if err != nil {
		return nil, err
	}
	return &Principal{
		ID:       claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     models.SystemRole(claims.SystemRole),
	}, nil
}
