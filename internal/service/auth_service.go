package service

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shiftaiot/iot-platform/internal/auth"
	"github.com/shiftaiot/iot-platform/internal/config"
	"github.com/shiftaiot/iot-platform/internal/domain"
	"github.com/shiftaiot/iot-platform/internal/events"
	"github.com/shiftaiot/iot-platform/internal/repository"
	apperrors "github.com/shiftaiot/iot-platform/pkg/util/errorutil"
)

// SignupInput carries the fields accepted at registration.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthResult is returned by signup, login and refresh.
type AuthResult struct {
	User   *domain.User
	Tokens domain.TokenPair
}

// AuthService coordinates registration, login, refresh and logout flows.
type AuthService struct {
	users        repository.UserRepository
	issuer       *auth.TokenIssuer
	verifier     *auth.TokenVerifier
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	bcryptCost   int
	defaultOrgID string
	revocation   bool
	now          func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Issuer     *auth.TokenIssuer
	Verifier   *auth.TokenVerifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:        deps.UserRepo,
		issuer:       deps.Issuer,
		verifier:     deps.Verifier,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		bcryptCost:   cfg.Auth.BcryptCost,
		defaultOrgID: cfg.Auth.DefaultOrganizationID,
		revocation:   cfg.Auth.RevocationEnabled,
		now:          time.Now,
	}
}

// Signup creates a new account and signs it in. Self-registered accounts are
// always USER; promotion to ADMIN is not possible through this endpoint.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	details := map[string]any{}
	if strings.TrimSpace(in.FirstName) == "" {
		details["firstName"] = "required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if err := auth.CheckPasswordPolicy(in.Password); err != nil {
		details["password"] = err.Error()
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid signup request", details)
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if exists {
		return nil, apperrors.NewConflict("an account with this email already exists", nil)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          email,
		PasswordHash:   hash,
		Role:           domain.RoleUser,
		OrganizationID: s.defaultOrgID,
		Enabled:        true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("an account with this email already exists", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	tokens, err := s.issuer.IssuePair(auth.PrincipalFromUser(user))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	s.publish(ctx, events.EventUserSignedUp, actorFromUser(user), nil)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.publish(ctx, events.EventSignInFailed, events.Actor{Subject: email}, events.SignInFailedPayload{Reason: "unknown_user"})
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.publish(ctx, events.EventSignInFailed, actorFromUser(user), events.SignInFailedPayload{Reason: "bad_password"})
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Enabled {
		s.publish(ctx, events.EventSignInFailed, actorFromUser(user), events.SignInFailedPayload{Reason: "disabled"})
		return nil, apperrors.NewUnauthorized("account is disabled")
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		now := s.now()
		user.LastLogin = &now
	}

	tokens, err := s.issuer.IssuePair(auth.PrincipalFromUser(user))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventUserSignedIn, actorFromUser(user), nil)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The user is
// re-loaded so that deleted or disabled accounts cannot refresh. With
// revocation enabled the presented refresh token is revoked before the new
// pair is issued, and only the caller that revoked it gets a pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.verifier.Verify(ctx, refreshToken)
	if err != nil {
		kind := auth.KindOf(err)
		s.logger.Info("refresh rejected", zap.String("reason", kind.String()))
		return nil, apperrors.NewDomainError("UNAUTHORIZED", "invalid refresh token", http.StatusUnauthorized, map[string]any{"reason": kind.String()})
	}
	if claims.TokenType() != domain.TokenTypeRefresh {
		return nil, apperrors.NewUnauthorized("refresh token required")
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !user.Enabled {
		return nil, apperrors.NewUnauthorized("account is disabled")
	}

	if s.revocation {
		rotated, err := s.verifier.Revoke(ctx, refreshToken)
		if err != nil {
			s.logger.Error("failed to revoke rotated refresh token", zap.String("user_id", user.ID), zap.Error(err))
			return nil, apperrors.NewInternalError(err)
		}
		if !rotated {
			s.logger.Warn("refresh token reused", zap.String("user_id", user.ID))
			return nil, apperrors.NewDomainError("UNAUTHORIZED", "invalid refresh token", http.StatusUnauthorized, map[string]any{"reason": auth.FailureRevoked.String()})
		}
	}

	tokens, err := s.issuer.IssuePair(auth.PrincipalFromUser(user))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.EventTokenRefreshed, actorFromUser(user), nil)
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Logout revokes the presented tokens when revocation is enabled. Without
// revocation it only records the event; clients discard their tokens.
// Tokens that fail verification are skipped.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) (bool, error) {
	actor := s.actorFromToken(accessToken)
	if actor.Subject == "" {
		actor = s.actorFromToken(refreshToken)
	}

	revoked := false
	if s.revocation {
		for _, raw := range []string{accessToken, refreshToken} {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			ok, err := s.verifier.Revoke(ctx, raw)
			if err != nil {
				if auth.KindOf(err) == auth.FailureUnknown {
					return false, apperrors.NewInternalError(err)
				}
				s.logger.Debug("skipping revocation of unusable token", zap.String("reason", auth.KindOf(err).String()))
				continue
			}
			revoked = revoked || ok
		}
	}

	s.publish(ctx, events.EventUserLoggedOut, actor, events.LoggedOutPayload{Revoked: revoked})
	return revoked, nil
}

// CurrentUser loads the stored user for the request principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal auth.Principal) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, principal.Subject)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *AuthService) publish(ctx context.Context, typ events.EventType, actor events.Actor, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Actor:     actor,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", string(typ)), zap.Error(err))
	}
}

// actorFromToken reads the identity of a correctly signed token, expired or
// not. Anything else yields an empty actor.
func (s *AuthService) actorFromToken(raw string) events.Actor {
	if strings.TrimSpace(raw) == "" {
		return events.Actor{}
	}
	claims, err := s.verifier.Inspect(raw)
	if claims == nil {
		s.logger.Debug("logout token unreadable", zap.String("reason", auth.KindOf(err).String()))
		return events.Actor{}
	}
	p := auth.PrincipalFromClaims(claims)
	return events.Actor{
		Subject:        p.Subject,
		UserID:         p.UserID,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
	}
}

func actorFromUser(user *domain.User) events.Actor {
	return events.Actor{
		Subject:        user.Email,
		UserID:         user.ID,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}
}
