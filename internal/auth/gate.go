package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shiftaiot/iot-platform/internal/domain"
	"github.com/shiftaiot/iot-platform/internal/observability"
)

// DefaultPublicPaths are path prefixes that bypass token handling entirely.
var DefaultPublicPaths = []string{
	"/api/auth/",
	"/auth/",
	"/api/health",
	"/health",
	"/swagger-ui",
	"/v3/api-docs",
}

const bearerPrefix = "Bearer "

// GateOutcome is the terminal state of one gate run.
type GateOutcome string

const (
	OutcomePublic        GateOutcome = "public"
	OutcomeAnonymous     GateOutcome = "anonymous"
	OutcomeRejected      GateOutcome = "rejected"
	OutcomeUnknownUser   GateOutcome = "unknown_user"
	OutcomeDisabledUser  GateOutcome = "disabled_user"
	OutcomeError         GateOutcome = "error"
	OutcomeAuthenticated GateOutcome = "authenticated"
)

// UserFinder loads the stored user behind a token subject.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RequestGate attaches a principal to requests that carry a valid bearer token.
// It never rejects a request: every outcome continues down the handler chain,
// and protected routes decide with RequireAuthenticated and friends.
type RequestGate struct {
	verifier    *TokenVerifier
	users       UserFinder
	logger      *zap.Logger
	metrics     *observability.Metrics
	publicPaths []string
}

// GateOption customizes a RequestGate.
type GateOption func(*RequestGate)

// WithPublicPaths appends path prefixes to DefaultPublicPaths.
func WithPublicPaths(prefixes ...string) GateOption {
	return func(g *RequestGate) {
		for _, p := range prefixes {
			if p = strings.TrimSpace(p); p != "" {
				g.publicPaths = append(g.publicPaths, p)
			}
		}
	}
}

// WithGateMetrics records one outcome per request.
func WithGateMetrics(m *observability.Metrics) GateOption {
	return func(g *RequestGate) {
		g.metrics = m
	}
}

// NewRequestGate constructs the gate.
func NewRequestGate(verifier *TokenVerifier, users UserFinder, logger *zap.Logger, opts ...GateOption) *RequestGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &RequestGate{
		verifier:    verifier,
		users:       users,
		logger:      logger,
		publicPaths: append([]string(nil), DefaultPublicPaths...),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle is the fiber middleware entry point.
func (g *RequestGate) Handle(c *fiber.Ctx) error {
	outcome := g.authenticate(c)
	g.metrics.RecordGateOutcome(string(outcome))
	return c.Next()
}

// IsPublic reports whether path is on the allowlist.
func (g *RequestGate) IsPublic(path string) bool {
	for _, prefix := range g.publicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *RequestGate) authenticate(c *fiber.Ctx) (outcome GateOutcome) {
	path := c.Path()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("authentication panicked", zap.String("path", path), zap.Any("panic", r))
			outcome = OutcomeError
		}
	}()

	if g.IsPublic(path) {
		return OutcomePublic
	}

	token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		g.logger.Debug("no bearer token", zap.String("path", path))
		return OutcomeAnonymous
	}

	ctx := c.UserContext()
	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.logger.Warn("bearer token rejected",
			zap.String("path", path),
			zap.String("reason", KindOf(err).String()))
		return OutcomeRejected
	}

	user, err := g.users.GetByEmail(ctx, claims.Subject)
	if err != nil || user == nil {
		g.logger.Warn("token subject could not be resolved",
			zap.String("path", path),
			zap.String("subject", claims.Subject),
			zap.Error(err))
		return OutcomeUnknownUser
	}
	if !user.Enabled {
		g.logger.Warn("token subject is disabled", zap.String("path", path), zap.String("subject", claims.Subject))
		return OutcomeDisabledUser
	}

	principal := PrincipalFromUser(user)
	principal.TokenType = claims.TokenType()
	attachPrincipal(c, principal)

	g.logger.Debug("request authenticated",
		zap.String("path", path),
		zap.String("subject", principal.Subject),
		zap.String("role", string(principal.Role)))
	return OutcomeAuthenticated
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is case-sensitive.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
