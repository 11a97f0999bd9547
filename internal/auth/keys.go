package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shiftaiot/iot-platform/internal/config"
)

// MinSecretBytes is the recommended HMAC secret length (256 bits).
const MinSecretBytes = 32

// KeyMaterial holds the signing secret and token lifetimes. It is built once at
// startup and never mutated, so it is safe to share between goroutines.
type KeyMaterial struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewKeyMaterial validates and copies the provided secret.
func NewKeyMaterial(secret []byte, accessTTL, refreshTTL time.Duration) (KeyMaterial, error) {
	if len(strings.TrimSpace(string(secret))) == 0 {
		return KeyMaterial{}, errors.New("signing secret must not be empty")
	}
	if accessTTL <= 0 {
		return KeyMaterial{}, fmt.Errorf("access token ttl must be positive, got %s", accessTTL)
	}
	if refreshTTL <= 0 {
		return KeyMaterial{}, fmt.Errorf("refresh token ttl must be positive, got %s", refreshTTL)
	}

	owned := make([]byte, len(secret))
	copy(owned, secret)
	return KeyMaterial{secret: owned, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// KeyMaterialFromConfig builds key material from the auth configuration.
func KeyMaterialFromConfig(cfg config.AuthConfig) (KeyMaterial, error) {
	if err := cfg.Validate(); err != nil {
		return KeyMaterial{}, err
	}
	return NewKeyMaterial([]byte(cfg.JWTSecret), cfg.AccessTTL(), cfg.RefreshTTL())
}

// AccessTTL returns the access-token lifetime.
func (k KeyMaterial) AccessTTL() time.Duration { return k.accessTTL }

// RefreshTTL returns the refresh-token lifetime.
func (k KeyMaterial) RefreshTTL() time.Duration { return k.refreshTTL }

// Weak reports whether the secret is shorter than MinSecretBytes.
func (k KeyMaterial) Weak() bool { return len(k.secret) < MinSecretBytes }

// String never prints the secret.
func (k KeyMaterial) String() string {
	return fmt.Sprintf("KeyMaterial{secret:<%d bytes>, access:%s, refresh:%s}", len(k.secret), k.accessTTL, k.refreshTTL)
}
