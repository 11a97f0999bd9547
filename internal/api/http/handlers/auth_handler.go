package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/shiftaiot/iot-platform/internal/api/dto"
	"github.com/shiftaiot/iot-platform/internal/auth"
	"github.com/shiftaiot/iot-platform/internal/service"
	apperrors "github.com/shiftaiot/iot-platform/pkg/util/errorutil"
)

// AuthHandler exposes signin, signup, refresh and logout.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signin handles POST /auth/signin.
func (h *AuthHandler) Signin(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(jwtResponse(result))
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(jwtResponse(result))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}

	result, err := h.auth.Refresh(c.UserContext(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(jwtResponse(result))
}

// Logout handles POST /auth/logout. The access token is read from the
// Authorization header; the body may name a refresh token to revoke.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	access, _ := auth.BearerToken(c.Get(fiber.HeaderAuthorization))

	if _, err := h.auth.Logout(c.UserContext(), access, req.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func jwtResponse(result *service.AuthResult) dto.JwtResponse {
	user := result.User
	return dto.JwtResponse{
		Token:            result.Tokens.AccessToken,
		Type:             "Bearer",
		ID:               user.ID,
		Name:             user.FullName(),
		Email:            user.Email,
		Role:             string(user.Role),
		OrganizationID:   user.OrganizationID,
		RefreshToken:     result.Tokens.RefreshToken,
		ExpiresAt:        result.Tokens.AccessExpiresAt,
		RefreshExpiresAt: result.Tokens.RefreshExpiresAt,
	}
}
