package handler

import (
	"net/http"

	"github.com/msomdec/people-registry/internal/service"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Auth         *service.AuthService
	People       *service.PersonService
	Images       *service.ImageService
	Limiter      *service.AttemptLimiter // nil disables throttling
	Metrics      *Metrics                // nil disables /metrics and request metrics
	CookieSecure bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	auth := NewAuthHandler(d.Auth, d.Limiter, d.CookieSecure)
	people := NewPeopleHandler(d.People)
	api := NewAPIHandler(d.People)
	images := NewImageHandler(d.Images)

	requireAuth := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(d.Auth, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	mux.HandleFunc("GET /register", auth.HandleRegisterPage)
	mux.HandleFunc("POST /register", auth.HandleRegister)
	mux.HandleFunc("GET /login", auth.HandleLoginPage)
	mux.HandleFunc("POST /login", auth.HandleLogin)
	mux.HandleFunc("POST /logout", auth.HandleLogout)
	mux.HandleFunc("GET /account/access-denied", auth.HandleAccessDenied)

	mux.HandleFunc("GET /people", people.HandleList)
	mux.HandleFunc("GET /people/search", people.HandleSearch)
	mux.Handle("GET /people/new", requireAuth(people.HandleNew))
	mux.Handle("POST /people", requireAuth(people.HandleCreate))
	mux.HandleFunc("GET /people/{id}", people.HandleDetail)
	mux.Handle("GET /people/{id}/edit", requireAuth(people.HandleEditForm))
	mux.Handle("POST /people/{id}/edit", requireAuth(people.HandleEdit))
	mux.Handle("GET /people/{id}/delete", requireAuth(people.HandleDeleteForm))
	mux.Handle("POST /people/{id}/delete", requireAuth(people.HandleDelete))

	mux.HandleFunc("GET /images/{name}", images.HandleServe)

	mux.HandleFunc("GET /api/people", api.HandleList)
	mux.HandleFunc("GET /api/people/{id}", api.HandleGet)

	mux.HandleFunc("GET /{$}", HandleHome)
}

// NewHandler builds the routed mux wrapped in the middleware chain:
// security headers, metrics, principal resolution, request logging.
func NewHandler(d Deps) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, d)

	var h http.Handler = OptionalAuth(d.Auth, RequestLogger(mux))
	if d.Metrics != nil {
		h = d.Metrics.Middleware(mux, h)
	}
	return SecurityHeaders(h)
}
