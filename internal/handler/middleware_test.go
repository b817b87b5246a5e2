package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/msomdec/people-registry/internal/handler"
	"github.com/msomdec/people-registry/internal/repository/localfs"
	"github.com/msomdec/people-registry/internal/repository/sqlite"
	"github.com/msomdec/people-registry/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	testJWTSecret = "test-secret-for-handler-tests-0123456789"
	adminEmail    = "admin@example.com"
)

type testEnv struct {
	auth *service.AuthService
	db   *sqlite.DB
	deps handler.Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := localfs.New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	auth := service.NewAuthService(db.Users(), testJWTSecret, 4)
	if err := auth.BootstrapAdministrators(context.Background(), []string{adminEmail}); err != nil {
		t.Fatalf("BootstrapAdministrators: %v", err)
	}
	images := service.NewImageService(store)

	return &testEnv{
		auth: auth,
		db:   db,
		deps: handler.Deps{
			Auth:    auth,
			People:  service.NewPersonService(db.People(), images, service.NewGuard(nil)),
			Images:  images,
			Metrics: handler.NewMetrics(prometheus.NewRegistry()),
		},
	}
}

// token registers email and returns a valid auth cookie value.
func (e *testEnv) token(t *testing.T, email, displayName string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := e.auth.Register(ctx, email, displayName, "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := e.auth.Login(ctx, email, "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return token
}

func TestRequireAuth_ValidJWT(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "valid@example.com", "Valid User")

	var gotName string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := handler.PrincipalFromContext(r.Context()); p != nil {
			gotName = p.DisplayName
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()

	handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotName != "Valid User" {
		t.Fatalf("expected principal 'Valid User', got %q", gotName)
	}
}

func TestRequireAuth_ChallengesAnonymous(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		cookie string
	}{
		{"missing cookie", ""},
		{"invalid token", "invalid.jwt.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("inner handler should not be called")
			})

			req := httptest.NewRequest(http.MethodGet, "/people/new?x=1", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

			if w.Code != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != "/login?return_url=%2Fpeople%2Fnew%3Fx%3D1" {
				t.Fatalf("unexpected challenge location %q", loc)
			}
		})
	}
}

func TestRequireAuth_TamperedToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "tamper@example.com", "Tamper")
	tampered := token[:len(token)-1] + "X"

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: tampered})
	w := httptest.NewRecorder()

	handler.RequireAuth(env.auth, inner).ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
}

func TestOptionalAuth_ResolvesRoles(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, adminEmail, "Admin")

	var isAdmin bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isAdmin = handler.PrincipalFromContext(r.Context()).IsAdministrator()
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	w := httptest.NewRecorder()

	handler.OptionalAuth(env.auth, inner).ServeHTTP(w, req)

	if !isAdmin {
		t.Fatal("expected bootstrap administrator to carry the Administrator role")
	}
}

func TestOptionalAuth_WithoutToken(t *testing.T) {
	env := newTestEnv(t)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if handler.PrincipalFromContext(r.Context()) != nil {
			t.Error("expected nil principal for unauthenticated request")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.OptionalAuth(env.auth, inner).ServeHTTP(w, req)

	if !called || w.Code != http.StatusOK {
		t.Fatalf("expected pass-through 200, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	w := httptest.NewRecorder()

	handler.SecurityHeaders(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing %s header", h)
		}
	}
}
