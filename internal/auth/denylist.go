package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDenylistPrefix = "auth:denylist:"

// Denylist records revoked token ids until the tokens would have expired anyway.
type Denylist interface {
	// Revoke reports true when this call added the entry and false when the
	// id was already revoked or has nothing left to live.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisDenylist stores one key per revoked token id with a TTL matching the
// remaining token lifetime.
type RedisDenylist struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisDenylist wraps a go-redis client.
func NewRedisDenylist(client redis.Cmdable) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: defaultDenylistPrefix, now: time.Now}
}

// Revoke marks tokenID as revoked until expiresAt. Concurrent calls for the
// same id see exactly one true result.
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, errors.New("token id is required")
	}
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return false, nil
	}
	return d.client.SetNX(ctx, d.prefix+tokenID, expiresAt.Unix(), ttl).Result()
}

// IsRevoked reports whether tokenID has a live denylist entry.
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
