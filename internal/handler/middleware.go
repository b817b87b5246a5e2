package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/service"
)

type contextKey string

const principalContextKey contextKey = "principal"

const authCookieName = "auth_token"

// PrincipalFromContext extracts the authenticated caller from the request
// context. Returns nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalContextKey).(*domain.Principal)
	return p
}

func withPrincipal(r *http.Request, p *domain.Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalContextKey, p))
}

// RequireAuth protects routes that need a signed-in caller. Anonymous
// requests are redirected to the login page with a return URL.
func RequireAuth(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		p, err := authenticateRequest(r, auth)
		if err != nil {
			http.Redirect(w, r, loginURL(r), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, withPrincipal(r, p))
	})
}

// OptionalAuth attempts to authenticate but never blocks. If the cookie
// carries a valid token for an existing user, the principal (with its
// current roles) is injected into the context.
func OptionalAuth(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := authenticateRequest(r, auth); err == nil {
			r = withPrincipal(r, p)
		}
		next.ServeHTTP(w, r)
	})
}

func authenticateRequest(r *http.Request, auth *service.AuthService) (*domain.Principal, error) {
	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		return nil, err
	}

	email, err := auth.ValidateToken(cookie.Value)
	if err != nil {
		return nil, err
	}

	return auth.ResolvePrincipal(r.Context(), email)
}

// loginURL is the challenge target for r: the login page, returning to
// the current path afterwards.
func loginURL(r *http.Request) string {
	return "/login?return_url=" + url.QueryEscape(r.URL.RequestURI())
}

// safeReturnURL accepts only local absolute paths.
func safeReturnURL(s string) string {
	if s == "" || !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, `/\`) {
		return "/people"
	}
	return s
}

// SecurityHeaders sets conservative browser security headers on every
// response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://cdn.jsdelivr.net 'unsafe-eval'; style-src 'self' https://cdn.jsdelivr.net; img-src 'self' data:; connect-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the response status. It unwraps so that
// http.ResponseController can still flush server-sent events.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func (sw *statusWriter) code() int {
	if sw.status == 0 {
		return http.StatusOK
	}
	return sw.status
}

// RequestLogger logs one line per request. It must run inside OptionalAuth
// to see the principal.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		email := ""
		if p := PrincipalFromContext(r.Context()); p != nil {
			email = p.Email
		}
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.code(),
			"principal", email,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
