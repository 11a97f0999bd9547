package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/shiftaiot/iot-platform/internal/api/dto"
	"github.com/shiftaiot/iot-platform/internal/auth"
	"github.com/shiftaiot/iot-platform/internal/service"
	apperrors "github.com/shiftaiot/iot-platform/pkg/util/errorutil"
)

// UsersHandler exposes endpoints about the authenticated user.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	user, err := h.auth.CurrentUser(c.UserContext(), principal)
	if err != nil {
		return err
	}

	return c.JSON(dto.CurrentUserResponse{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.FullName(),
		Role:           string(principal.Role),
		OrganizationID: principal.OrganizationID,
		Permissions:    permissionNames(principal),
		LastLogin:      user.LastLogin,
	})
}

func permissionNames(p auth.Principal) []string {
	var names []string
	for _, perm := range auth.AllPermissions() {
		if p.Can(perm) {
			names = append(names, string(perm))
		}
	}
	sort.Strings(names)
	return names
}
