package dto

import "time"

// SignupRequest payload for new accounts.
type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginRequest payload for signin.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenRequest carries the refresh token to exchange.
type RefreshTokenRequest struct {
	Token string `json:"token"`
}

// LogoutRequest optionally carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// JwtResponse is returned by signin, signup and refresh.
type JwtResponse struct {
	Token            string    `json:"token"`
	Type             string    `json:"type"`
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	OrganizationID   string    `json:"organizationId"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// CurrentUserResponse describes the authenticated caller.
type CurrentUserResponse struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           string     `json:"role"`
	OrganizationID string     `json:"organizationId"`
	Permissions    []string   `json:"permissions"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}
