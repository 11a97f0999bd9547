package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/shiftaiot/iot-platform/internal/domain"
)

// Canonical claim names.
const (
	ClaimSubject        = "sub"
	ClaimIssuedAt       = "iat"
	ClaimExpiresAt      = "exp"
	ClaimTokenID        = "jti"
	ClaimUserID         = "userId"
	ClaimRole           = "userRole"
	ClaimOrganizationID = "organizationId"
	ClaimFullName       = "userFullName"
	ClaimType           = "type"
)

var signingMethod = jwt.SigningMethodHS256

var errUnexpectedAlgorithm = errors.New("unexpected signing method")

// Claims describes the JWT payload.
type Claims struct {
	UserID         string           `json:"userId,omitempty"`
	Role           domain.Role      `json:"userRole,omitempty"`
	OrganizationID string           `json:"organizationId,omitempty"`
	FullName       string           `json:"userFullName,omitempty"`
	Type           domain.TokenType `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenType reports refresh for tokens carrying type=refresh and access otherwise.
func (c *Claims) TokenType() domain.TokenType {
	if c.Type == domain.TokenTypeRefresh {
		return domain.TokenTypeRefresh
	}
	return domain.TokenTypeAccess
}

// Claim looks up a claim by its canonical name. Missing claims report false.
func (c *Claims) Claim(name string) (string, bool) {
	var val string
	switch name {
	case ClaimSubject:
		val = c.Subject
	case ClaimTokenID:
		val = c.ID
	case ClaimUserID:
		val = c.UserID
	case ClaimRole:
		val = string(c.Role)
	case ClaimOrganizationID:
		val = c.OrganizationID
	case ClaimFullName:
		val = c.FullName
	case ClaimType:
		val = string(c.Type)
	case ClaimIssuedAt:
		if c.IssuedAt != nil {
			val = strconv.FormatInt(c.IssuedAt.Unix(), 10)
		}
	case ClaimExpiresAt:
		if c.ExpiresAt != nil {
			val = strconv.FormatInt(c.ExpiresAt.Unix(), 10)
		}
	}
	return val, val != ""
}

// Codec encodes and decodes signed tokens. It has no state besides the clock.
type Codec struct {
	now func() time.Time
}

// NewCodec returns a codec using now as its clock; nil means time.Now.
func NewCodec(now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{now: now}
}

// Now returns the codec clock's current time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Encode stamps iat from the codec clock and exp from expiresAt, then signs
// the claims with HS256.
func (c *Codec) Encode(claims Claims, secret []byte, expiresAt time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret must not be empty")
	}
	claims.IssuedAt = jwt.NewNumericDate(c.now())
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(signingMethod, &claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and time claims of raw.
//
// On success the claims are returned with a nil error. When the only problem is
// that the token has expired, both the claims and a FailureExpired error are
// returned so callers can still read the identity. Every other failure returns
// nil claims and a *TokenError.
func (c *Codec) Decode(raw string, secret []byte) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, newTokenError(FailureEmpty, nil)
	}
	if len(secret) == 0 {
		return nil, newTokenError(FailureInvalidSignature, errors.New("no verification secret"))
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, fmt.Errorf("%w: %s", errUnexpectedAlgorithm, t.Method.Alg())
		}
		return secret, nil
	})
	if err == nil {
		return claims, nil
	}

	kind := classify(err)
	if kind == FailureExpired {
		return claims, newTokenError(kind, err)
	}
	return nil, newTokenError(kind, err)
}

// classify maps golang-jwt errors onto FailureKind. The parser verifies the
// signature before it validates time claims, so an expired token that reaches
// this point has a good signature.
func classify(err error) FailureKind {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return FailureMalformed
	case errors.Is(err, errUnexpectedAlgorithm), errors.Is(err, jwt.ErrTokenUnverifiable):
		return FailureUnsupported
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return FailureInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return FailureMalformed
	default:
		return FailureUnknown
	}
}
