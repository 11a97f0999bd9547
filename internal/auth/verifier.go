package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// TokenVerifier validates raw tokens and extracts identity from them.
//
// Validate and Verify answer "may this token authorize a request right now".
// ExtractSubject, ExtractClaim and IsExpired answer "what does this token say",
// and keep working on tokens that are expired but correctly signed.
type TokenVerifier struct {
	keys     KeyMaterial
	codec    *Codec
	denylist Denylist
	logger   *zap.Logger
}

// VerifierOption customizes a TokenVerifier.
type VerifierOption func(*TokenVerifier)

// WithDenylist makes Verify reject tokens whose id has been revoked.
func WithDenylist(d Denylist) VerifierOption {
	return func(v *TokenVerifier) {
		v.denylist = d
	}
}

// NewTokenVerifier builds a verifier. logger may be nil.
func NewTokenVerifier(keys KeyMaterial, codec *Codec, logger *zap.Logger, opts ...VerifierOption) *TokenVerifier {
	if codec == nil {
		codec = NewCodec(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &TokenVerifier{keys: keys, codec: codec, logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns the claims of a token that is currently valid: good
// signature, non-empty subject, exp present and strictly after now, and not
// revoked. Any failure returns nil claims and a classified error. A denylist
// lookup error is returned unclassified and rejects the token.
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := v.codec.Decode(raw, v.keys.secret)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, newTokenError(FailureMalformed, errors.New("missing subject"))
	}
	if claims.ExpiresAt == nil {
		return nil, newTokenError(FailureMalformed, errors.New("missing expiry"))
	}
	if v.denylist != nil && claims.ID != "" {
		revoked, err := v.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("checking denylist: %w", err)
		}
		if revoked {
			return nil, newTokenError(FailureRevoked, nil)
		}
	}
	return claims, nil
}

// Validate reports whether raw may authorize a request. It never panics or
// returns an error: every failure, expected or not, yields false.
func (v *TokenVerifier) Validate(ctx context.Context, raw string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("token validation panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	if _, err := v.Verify(ctx, raw); err != nil {
		v.logger.Debug("token rejected", zap.String("reason", KindOf(err).String()), zap.Error(err))
		return false
	}
	return true
}

// Inspect decodes raw without the denylist check. Expired tokens yield their
// claims together with a FailureExpired error; other failures yield nil claims.
func (v *TokenVerifier) Inspect(raw string) (*Claims, error) {
	return v.codec.Decode(raw, v.keys.secret)
}

// ExtractSubject returns the subject of a correctly signed token, expired or not.
func (v *TokenVerifier) ExtractSubject(raw string) (string, bool) {
	return v.ExtractClaim(raw, ClaimSubject)
}

// ExtractClaim returns a named claim of a correctly signed token, expired or not.
func (v *TokenVerifier) ExtractClaim(raw, name string) (string, bool) {
	claims := v.readable(raw)
	if claims == nil {
		return "", false
	}
	return claims.Claim(name)
}

// IsExpired reports whether raw is a correctly signed token past its expiry.
// When the token cannot be decoded for any other reason it returns false. Do
// not use it to authorize anything; Validate fails closed, IsExpired does not.
func (v *TokenVerifier) IsExpired(raw string) bool {
	_, err := v.codec.Decode(raw, v.keys.secret)
	return KindOf(err) == FailureExpired
}

// Revoke adds the token id of raw to the denylist until the token expires.
// It reports true only when this call revoked the token; tokens that are
// already revoked or already expired report false.
func (v *TokenVerifier) Revoke(ctx context.Context, raw string) (bool, error) {
	if v.denylist == nil {
		return false, ErrRevocationDisabled
	}
	claims, err := v.codec.Decode(raw, v.keys.secret)
	if err != nil {
		if KindOf(err) == FailureExpired {
			return false, nil
		}
		return false, err
	}
	if claims.ID == "" {
		return false, newTokenError(FailureMalformed, errors.New("token has no id"))
	}
	return v.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (v *TokenVerifier) readable(raw string) *Claims {
	claims, err := v.codec.Decode(raw, v.keys.secret)
	if err != nil && KindOf(err) != FailureExpired {
		v.logger.Debug("cannot read token claims", zap.String("reason", KindOf(err).String()))
		return nil
	}
	return claims
}
