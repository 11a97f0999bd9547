package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shiftaiot/iot-platform/internal/domain"
	apperrors "github.com/shiftaiot/iot-platform/pkg/util/errorutil"
)

// RequireAuthenticated rejects requests without a principal, and principals
// that were derived from a refresh token.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := authenticated(c); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, err := authenticated(c)
		if err != nil {
			return err
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequirePermission ensures the principal's role grants perm.
func RequirePermission(perm Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := authenticated(c)
		if err != nil {
			return err
		}
		if !principal.Can(perm) {
			return apperrors.NewForbidden("missing permission " + string(perm))
		}
		return c.Next()
	}
}

func authenticated(c *fiber.Ctx) (Principal, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	if principal.TokenType == domain.TokenTypeRefresh {
		return Principal{}, apperrors.NewUnauthorized("access token required")
	}
	return principal, nil
}
