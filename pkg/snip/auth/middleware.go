package auth

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
)

const (
	// ContextKeyPrincipal is the key for the authenticated principal in gin context
	ContextKeyPrincipal = "principal"
	// CookieName carries the access token for browser clients
	CookieName = "access_token"
)

// Credential extracts the caller's credential from the Authorization header
// or, failing that, the access token cookie.
func Credential(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", fmt.Errorf("invalid authorization header format: %w", api.ErrUnauthenticated)
		}
		return parts[1], nil
	}

	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return strings.TrimPrefix(cookie, "Bearer "), nil
	}

	return "", fmt.Errorf("authorization header required: %w", api.ErrUnauthenticated)
}

// RequirePrincipal rejects requests without a valid credential.
func RequirePrincipal(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, err := Credential(c)
		if err != nil {
			api.WriteError(c, err)
			return
		}

		principal, err := a.Authenticate(c.Request.Context(), credential)
		if err != nil {
			api.WriteError(c, err)
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

// OptionalPrincipal sets the principal when a valid credential is present and
// otherwise lets the request through anonymously.
func OptionalPrincipal(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if credential, err := Credential(c); err == nil {
			if principal, err := a.Authenticate(c.Request.Context(), credential); err == nil {
				SetPrincipal(c, principal)
			}
		}
		c.Next()
	}
}

// RequireAdmin middleware checks if the user has admin system role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			api.WriteError(c, api.ErrUnauthenticated)
			return
		}

		if !principal.IsAdmin() {
			api.WriteError(c, fmt.Errorf("admin access required: %w", api.ErrForbidden))
			return
		}

		c.Next()
	}
}

// SetPrincipal stores the principal in the gin context
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(ContextKeyPrincipal, p)
}

// GetPrincipal returns the principal from the gin context
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	v, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		return 0, false
	}
	return p.ID, true
}
