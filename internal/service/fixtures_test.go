package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/shiftaiot/iot-platform/internal/auth"
	"github.com/shiftaiot/iot-platform/internal/config"
	"github.com/shiftaiot/iot-platform/internal/domain"
	"github.com/shiftaiot/iot-platform/internal/events"
	"github.com/shiftaiot/iot-platform/internal/repository"
)

const testSecret = "service-test-secret-0123456789abcdef"

type memUsers struct {
	mu      sync.Mutex
	byEmail map[string]*domain.User
	failGet error
	touched []string
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*domain.User)}
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	m.byEmail[user.Email] = &copied
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memUsers) TouchLastLogin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			now := time.Now()
			u.LastLogin = &now
			m.touched = append(m.touched, id)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memUsers) disable(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEmail[email].Enabled = false
}

func (m *memUsers) remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEmail, email)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordedEvents) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type serviceKit struct {
	svc      *AuthService
	users    *memUsers
	events   *recordedEvents
	verifier *auth.TokenVerifier
	issuer   *auth.TokenIssuer
	redis    *miniredis.Miniredis
}

func newServiceKit(t *testing.T, revocation bool) *serviceKit {
	t.Helper()
	return newServiceKitWithDenylist(t, revocation, nil)
}

// newServiceKitWithDenylist wraps the miniredis denylist with wrap when it is non-nil.
func newServiceKitWithDenylist(t *testing.T, revocation bool, wrap func(auth.Denylist) auth.Denylist) *serviceKit {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             testSecret,
		AccessTokenTTLMillis:  int64(15 * time.Minute / time.Millisecond),
		RefreshTokenTTLMillis: int64(24 * time.Hour / time.Millisecond),
		BcryptCost:            bcrypt.MinCost,
		RevocationEnabled:     revocation,
		DefaultOrganizationID: "shiftAIOT-org-2024",
	}}
	keys, err := auth.KeyMaterialFromConfig(cfg.Auth)
	if err != nil {
		t.Fatalf("KeyMaterialFromConfig() error = %v", err)
	}

	kit := &serviceKit{users: newMemUsers(), events: &recordedEvents{}}
	var opts []auth.VerifierOption
	if revocation {
		kit.redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: kit.redis.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		var denylist auth.Denylist = auth.NewRedisDenylist(client)
		if wrap != nil {
			denylist = wrap(denylist)
		}
		opts = append(opts, auth.WithDenylist(denylist))
	}
	kit.issuer = auth.NewTokenIssuer(keys, nil, nil, nil)
	kit.verifier = auth.NewTokenVerifier(keys, nil, nil, opts...)

	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, typ := range []events.EventType{
		events.EventUserSignedUp,
		events.EventUserSignedIn,
		events.EventSignInFailed,
		events.EventTokenRefreshed,
		events.EventUserLoggedOut,
	} {
		dispatcher.Subscribe(typ, kit.events.handle)
	}

	kit.svc = NewAuthService(cfg, AuthDependencies{
		UserRepo:   kit.users,
		Issuer:     kit.issuer,
		Verifier:   kit.verifier,
		Dispatcher: dispatcher,
	})
	return kit
}

func (k *serviceKit) signup(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := k.svc.Signup(context.Background(), SignupInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  password,
	})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	return res
}

var errStoreDown = errors.New("store down")

// brokenRevocation answers lookups from the wrapped store but fails every write.
type brokenRevocation struct {
	auth.Denylist
}

func (brokenRevocation) Revoke(context.Context, string, time.Time) (bool, error) {
	return false, errStoreDown
}
