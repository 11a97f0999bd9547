package auth

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftaiot/iot-platform/internal/domain"
	"github.com/shiftaiot/iot-platform/internal/observability"
)

// IssuedToken is a freshly signed token and its metadata.
type IssuedToken struct {
	Token     string
	ID        string
	Type      domain.TokenType
	ExpiresAt time.Time
}

// TokenIssuer mints access and refresh tokens for resolved principals. It does
// not check credentials.
type TokenIssuer struct {
	keys    KeyMaterial
	codec   *Codec
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewTokenIssuer builds an issuer. logger and metrics may be nil.
func NewTokenIssuer(keys KeyMaterial, codec *Codec, logger *zap.Logger, metrics *observability.Metrics) *TokenIssuer {
	if codec == nil {
		codec = NewCodec(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenIssuer{keys: keys, codec: codec, logger: logger, metrics: metrics}
}

// IssueAccessToken signs a short-lived token for p.
func (i *TokenIssuer) IssueAccessToken(p Principal) (IssuedToken, error) {
	return i.issue(p, domain.TokenTypeAccess, i.keys.AccessTTL())
}

// IssueRefreshToken signs a long-lived token for p carrying type=refresh.
func (i *TokenIssuer) IssueRefreshToken(p Principal) (IssuedToken, error) {
	return i.issue(p, domain.TokenTypeRefresh, i.keys.RefreshTTL())
}

// IssuePair signs both tokens for p.
func (i *TokenIssuer) IssuePair(p Principal) (domain.TokenPair, error) {
	access, err := i.IssueAccessToken(p)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := i.IssueRefreshToken(p)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (i *TokenIssuer) issue(p Principal, typ domain.TokenType, ttl time.Duration) (IssuedToken, error) {
	if !p.complete() {
		return IssuedToken{}, ErrIncompletePrincipal
	}

	// exp has second precision; truncating keeps a token from outliving ttl.
	expiresAt := i.codec.Now().Add(ttl).Truncate(time.Second)

	claims := Claims{
		UserID:         p.UserID,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
		FullName:       p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: p.Subject,
			ID:      uuid.NewString(),
		},
	}
	if typ == domain.TokenTypeRefresh {
		claims.Type = domain.TokenTypeRefresh
	}

	token, err := i.codec.Encode(claims, i.keys.secret, expiresAt)
	if err != nil {
		return IssuedToken{}, err
	}

	i.metrics.RecordTokenIssued(string(typ))
	i.logger.Debug("issued token",
		zap.String("subject", p.Subject),
		zap.String("type", string(typ)),
		zap.Time("expires_at", expiresAt))

	return IssuedToken{Token: token, ID: claims.ID, Type: typ, ExpiresAt: expiresAt}, nil
}
