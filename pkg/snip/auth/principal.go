package auth

import (
	"context"

	"github.com/mikepea/snip/pkg/snip/models"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       uint              `json:"id"`
	Username string            `json:"username"`
	Email    string            `json:"email"`
	Role     models.SystemRole `json:"system_role"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.SystemRoleAdmin
}

// PrincipalFromUser builds a principal from a stored user.
func PrincipalFromUser(u *models.User) *Principal {
	return &Principal{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.SystemRole,
	}
}

// Authenticator resolves a credential to a principal. Failures wrap
// api.ErrUnauthenticated.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, credential string) (*Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, credential string) (*Principal, error) {
	return f(ctx, credential)
}
