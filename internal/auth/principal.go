package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shiftaiot/iot-platform/internal/domain"
)

const principalKey = "auth_principal"

type principalContextKey struct{}

// Principal represents the authenticated caller for the duration of one request.
type Principal struct {
	Subject        string
	UserID         string
	Role           domain.Role
	OrganizationID string
	DisplayName    string
	// TokenType is the type of token the principal was derived from.
	TokenType domain.TokenType
}

// PrincipalFromUser derives a principal from a stored user. The subject is the email.
func PrincipalFromUser(user *domain.User) Principal {
	return Principal{
		Subject:        user.Email,
		UserID:         user.ID,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		DisplayName:    user.FullName(),
	}
}

// PrincipalFromClaims derives a principal from token claims without a store lookup.
func PrincipalFromClaims(claims *Claims) Principal {
	return Principal{
		Subject:        claims.Subject,
		UserID:         claims.UserID,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
		DisplayName:    claims.FullName,
		TokenType:      claims.TokenType(),
	}
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// Can reports whether the principal's role grants perm.
func (p Principal) Can(perm Permission) bool {
	return RoleHasPermission(p.Role, perm)
}

func (p Principal) complete() bool {
	return strings.TrimSpace(p.Subject) != "" && p.Role.Valid() && strings.TrimSpace(p.OrganizationID) != ""
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// FromContext retrieves the principal attached by the request gate.
func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// PrincipalFromContext retrieves the authenticated principal from fiber locals.
func PrincipalFromContext(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

func attachPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
	c.SetUserContext(WithPrincipal(c.UserContext(), p))
}
