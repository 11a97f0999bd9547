package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shiftaiot/iot-platform/internal/domain"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testKit struct {
	clock    *fakeClock
	keys     KeyMaterial
	codec    *Codec
	issuer   *TokenIssuer
	verifier *TokenVerifier
}

func newTestKit(t *testing.T, accessTTL, refreshTTL time.Duration, opts ...VerifierOption) *testKit {
	t.Helper()
	keys, err := NewKeyMaterial([]byte(testSecret), accessTTL, refreshTTL)
	if err != nil {
		t.Fatalf("NewKeyMaterial() error = %v", err)
	}
	clock := newFakeClock()
	codec := NewCodec(clock.Now)
	return &testKit{
		clock:    clock,
		keys:     keys,
		codec:    codec,
		issuer:   NewTokenIssuer(keys, codec, nil, nil),
		verifier: NewTokenVerifier(keys, codec, nil, opts...),
	}
}

func (k *testKit) accessToken(t *testing.T, p Principal) string {
	t.Helper()
	tok, err := k.issuer.IssueAccessToken(p)
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	return tok.Token
}

func (k *testKit) refreshToken(t *testing.T, p Principal) string {
	t.Helper()
	tok, err := k.issuer.IssueRefreshToken(p)
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}
	return tok.Token
}

func alice() Principal {
	return Principal{
		Subject:        "alice@example.com",
		UserID:         "usr-001",
		Role:           domain.RoleAdmin,
		OrganizationID: "org-1",
		DisplayName:    "Alice Liddell",
	}
}

func aliceUser() *domain.User {
	return &domain.User{
		ID:             "usr-001",
		FirstName:      "Alice",
		LastName:       "Liddell",
		Email:          "alice@example.com",
		Role:           domain.RoleAdmin,
		OrganizationID: "org-1",
		Enabled:        true,
	}
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
	panic bool
	calls int
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*domain.User)}
	for _, u := range users {
		f.users[u.Email] = u
	}
	return f
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panic {
		panic("user store exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *u
	return &copied, nil
}
