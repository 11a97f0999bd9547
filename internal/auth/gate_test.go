package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shiftaiot/iot-platform/internal/domain"
	"github.com/shiftaiot/iot-platform/internal/observability"
	apperrors "github.com/shiftaiot/iot-platform/pkg/util/errorutil"
)

type echoBody struct {
	Authenticated bool   `json:"authenticated"`
	Subject       string `json:"subject"`
	Role          string `json:"role"`
	Type          string `json:"type"`
	InContext     bool   `json:"inContext"`
	Code          string `json:"code"`
}

func newGateApp(kit *testKit, users UserFinder, opts ...GateOption) *fiber.App {
	gate := NewRequestGate(kit.verifier, users, nil, opts...)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"code": domainErr.Code})
		},
	})
	app.Use(gate.Handle)

	echo := func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		fromCtx, ctxOK := FromContext(c.UserContext())
		return c.JSON(echoBody{
			Authenticated: ok,
			Subject:       p.Subject,
			Role:          string(p.Role),
			Type:          string(p.TokenType),
			InContext:     ctxOK && fromCtx.Subject == p.Subject,
		})
	}
	app.Get("/api/devices", echo)
	app.Get("/api/auth/signin", echo)
	app.Get("/api/health", echo)
	app.Get("/api/public/docs", echo)
	app.Get("/api/secure", RequireAuthenticated(), echo)
	app.Get("/api/admin", RequireRole(domain.RoleAdmin), echo)
	app.Delete("/api/devices/1", RequirePermission(PermDeviceDelete), echo)
	app.Get("/api/devices/1", RequirePermission(PermDeviceRead), echo)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, authorization string) (int, echoBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", method, path, err)
	}
	defer resp.Body.Close()

	var body echoBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, body
}

func TestRequestGate_AttachesPrincipal(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	app := newGateApp(kit, newFakeUsers(aliceUser()))
	token := kit.accessToken(t, alice())

	status, body := call(t, app, http.MethodGet, "/api/devices", "Bearer "+token)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if !body.Authenticated || body.Subject != "alice@example.com" || body.Role != "ADMIN" {
		t.Errorf("unexpected principal: %+v", body)
	}
	if body.Type != "access" {
		t.Errorf("token type = %q, want access", body.Type)
	}
	if !body.InContext {
		t.Error("principal should also be on the user context")
	}
}

func TestRequestGate_RoleComesFromStore(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	demoted := aliceUser()
	demoted.Role = domain.RoleUser
	app := newGateApp(kit, newFakeUsers(demoted))
	token := kit.accessToken(t, alice())

	_, body := call(t, app, http.MethodGet, "/api/devices", "Bearer "+token)
	if body.Role != "USER" {
		t.Errorf("role = %q, want the stored USER role", body.Role)
	}
	if status, _ := call(t, app, http.MethodGet, "/api/admin", "Bearer "+token); status != fiber.StatusForbidden {
		t.Errorf("admin route status = %d, want 403", status)
	}
}

func TestRequestGate_NeverRejects(t *testing.T) {
	kit := newTestKit(t, time.Second, time.Hour)
	expired := kit.accessToken(t, alice())
	kit.clock.Advance(time.Minute)
	fresh := kit.accessToken(t, alice())
	ghost := kit.accessToken(t, Principal{Subject: "ghost@example.com", Role: domain.RoleUser, OrganizationID: "org-1"})

	disabled := aliceUser()
	disabled.Email = "dora@example.com"
	disabled.Enabled = false
	dora := kit.accessToken(t, PrincipalFromUser(disabled))

	app := newGateApp(kit, newFakeUsers(aliceUser(), disabled))

	cases := map[string]string{
		"no header":     "",
		"wrong scheme":  "Basic YWxpY2U6cGFzcw==",
		"lowercase":     "bearer " + fresh,
		"empty bearer":  "Bearer ",
		"garbage token": "Bearer not.a.jwt",
		"expired":       "Bearer " + expired,
		"unknown user":  "Bearer " + ghost,
		"disabled user": "Bearer " + dora,
	}
	for name, header := range cases {
		status, body := call(t, app, http.MethodGet, "/api/devices", header)
		if status != fiber.StatusOK {
			t.Errorf("%s: status = %d, want 200", name, status)
		}
		if body.Authenticated {
			t.Errorf("%s: principal attached, want anonymous", name)
		}
		if status, _ := call(t, app, http.MethodGet, "/api/secure", header); status != fiber.StatusUnauthorized {
			t.Errorf("%s: protected status = %d, want 401", name, status)
		}
	}
}

func TestRequestGate_PublicPathsSkipAuthentication(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	users := newFakeUsers(aliceUser())
	app := newGateApp(kit, users, WithPublicPaths("/api/public"))
	token := kit.accessToken(t, alice())

	for _, path := range []string{"/api/auth/signin", "/api/health", "/api/public/docs"} {
		status, body := call(t, app, http.MethodGet, path, "Bearer "+token)
		if status != fiber.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, status)
		}
		if body.Authenticated {
			t.Errorf("%s: public path should not carry a principal", path)
		}
	}
	if users.calls != 0 {
		t.Errorf("user store consulted %d times on public paths", users.calls)
	}
}

func TestRequestGate_IsPublic(t *testing.T) {
	gate := NewRequestGate(nil, nil, nil)
	public := []string{"/api/auth/signin", "/auth/refresh", "/api/health", "/api/healthz", "/health/ready", "/swagger-ui/index.html", "/v3/api-docs"}
	private := []string{"/api/devices", "/api/authx", "/api/users/me", "/", "/auth"}
	for _, p := range public {
		if !gate.IsPublic(p) {
			t.Errorf("IsPublic(%q) = false, want true", p)
		}
	}
	for _, p := range private {
		if gate.IsPublic(p) {
			t.Errorf("IsPublic(%q) = true, want false", p)
		}
	}
}

func TestRequestGate_RecoversFromPanics(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	users := newFakeUsers(aliceUser())
	users.panic = true
	app := newGateApp(kit, users)
	token := kit.accessToken(t, alice())

	status, body := call(t, app, http.MethodGet, "/api/devices", "Bearer "+token)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body.Authenticated {
		t.Error("a panicking lookup must leave the request anonymous")
	}
}

func TestRequestGate_StoreErrorLeavesAnonymous(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	users := newFakeUsers(aliceUser())
	users.err = errors.New("connection refused")
	app := newGateApp(kit, users)

	_, body := call(t, app, http.MethodGet, "/api/devices", "Bearer "+kit.accessToken(t, alice()))
	if body.Authenticated {
		t.Error("store failure must leave the request anonymous")
	}
}

func TestRequestGate_RefreshPrincipalIsNotAccess(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	app := newGateApp(kit, newFakeUsers(aliceUser()))
	refresh := kit.refreshToken(t, alice())

	status, body := call(t, app, http.MethodGet, "/api/devices", "Bearer "+refresh)
	if status != fiber.StatusOK || !body.Authenticated || body.Type != "refresh" {
		t.Fatalf("status = %d, body = %+v; want refresh principal attached", status, body)
	}
	status, body = call(t, app, http.MethodGet, "/api/secure", "Bearer "+refresh)
	if status != fiber.StatusUnauthorized || body.Code != "UNAUTHORIZED" {
		t.Errorf("status = %d, code = %q; want 401 UNAUTHORIZED", status, body.Code)
	}
}

func TestRequestGate_Permissions(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	bob := &domain.User{ID: "usr-002", FirstName: "Bob", Email: "bob@example.com", Role: domain.RoleUser, OrganizationID: "org-1", Enabled: true}
	app := newGateApp(kit, newFakeUsers(aliceUser(), bob))
	aliceToken := "Bearer " + kit.accessToken(t, alice())
	bobToken := "Bearer " + kit.accessToken(t, PrincipalFromUser(bob))

	if status, _ := call(t, app, http.MethodGet, "/api/devices/1", bobToken); status != fiber.StatusOK {
		t.Errorf("USER read status = %d, want 200", status)
	}
	if status, _ := call(t, app, http.MethodDelete, "/api/devices/1", bobToken); status != fiber.StatusForbidden {
		t.Errorf("USER delete status = %d, want 403", status)
	}
	if status, _ := call(t, app, http.MethodDelete, "/api/devices/1", aliceToken); status != fiber.StatusOK {
		t.Errorf("ADMIN delete status = %d, want 200", status)
	}
	if status, _ := call(t, app, http.MethodDelete, "/api/devices/1", ""); status != fiber.StatusUnauthorized {
		t.Errorf("anonymous delete status = %d, want 401", status)
	}
}

func TestRequestGate_RecordsOutcomes(t *testing.T) {
	kit := newTestKit(t, time.Hour, time.Hour)
	metrics := observability.NewMetrics()
	app := newGateApp(kit, newFakeUsers(aliceUser()), WithGateMetrics(metrics))

	call(t, app, http.MethodGet, "/api/devices", "Bearer "+kit.accessToken(t, alice()))
	call(t, app, http.MethodGet, "/api/devices", "")
	call(t, app, http.MethodGet, "/api/devices", "Bearer junk")
	call(t, app, http.MethodGet, "/api/health", "")

	expected := `
# HELP iot_platform_auth_gate_outcomes_total Request gate terminal states.
# TYPE iot_platform_auth_gate_outcomes_total counter
iot_platform_auth_gate_outcomes_total{outcome="anonymous"} 1
iot_platform_auth_gate_outcomes_total{outcome="authenticated"} 1
iot_platform_auth_gate_outcomes_total{outcome="public"} 1
iot_platform_auth_gate_outcomes_total{outcome="rejected"} 1
`
	if err := testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "iot_platform_auth_gate_outcomes_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer   padded  ", "padded", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"bearer abc", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := BearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}
