package auth

import (
	"errors"
)

// FailureKind classifies why a token was rejected.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureEmpty
	FailureMalformed
	FailureInvalidSignature
	FailureUnsupported
	FailureExpired
	FailureRevoked
	FailureUnknown
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureEmpty:
		return "empty"
	case FailureMalformed:
		return "malformed"
	case FailureInvalidSignature:
		return "invalid_signature"
	case FailureUnsupported:
		return "unsupported"
	case FailureExpired:
		return "expired"
	case FailureRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Terminal reports whether the caller has to log in again. Expired tokens can
// be replaced through the refresh flow and empty credentials are anonymous.
func (k FailureKind) Terminal() bool {
	switch k {
	case FailureMalformed, FailureInvalidSignature, FailureUnsupported, FailureRevoked, FailureUnknown:
		return true
	default:
		return false
	}
}

var (
	ErrTokenEmpty       = errors.New("token is empty")
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrTokenSignature   = errors.New("token signature is invalid")
	ErrTokenUnsupported = errors.New("token signing scheme is unsupported")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenRevoked     = errors.New("token has been revoked")

	// ErrIncompletePrincipal is returned when a token is requested for a
	// principal without subject, role or organization.
	ErrIncompletePrincipal = errors.New("principal is not fully resolved")

	// ErrRevocationDisabled is returned by Revoke when no denylist is configured.
	ErrRevocationDisabled = errors.New("token revocation is not enabled")
)

// TokenError carries the failure kind and the underlying cause.
type TokenError struct {
	Kind FailureKind
	Err  error
}

func newTokenError(kind FailureKind, cause error) *TokenError {
	return &TokenError{Kind: kind, Err: cause}
}

func (e *TokenError) Error() string {
	base := e.sentinel()
	if base == nil {
		if e.Err != nil {
			return e.Err.Error()
		}
		return "token rejected"
	}
	if e.Err != nil {
		return base.Error() + ": " + e.Err.Error()
	}
	return base.Error()
}

func (e *TokenError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *TokenError) sentinel() error {
	switch e.Kind {
	case FailureEmpty:
		return ErrTokenEmpty
	case FailureMalformed:
		return ErrTokenMalformed
	case FailureInvalidSignature:
		return ErrTokenSignature
	case FailureUnsupported:
		return ErrTokenUnsupported
	case FailureExpired:
		return ErrTokenExpired
	case FailureRevoked:
		return ErrTokenRevoked
	default:
		return nil
	}
}

// KindOf returns the failure kind carried by err. Errors that did not come
// from the codec or verifier are reported as FailureUnknown.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Kind
	}
	return FailureUnknown
}
