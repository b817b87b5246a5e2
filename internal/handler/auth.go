package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/service"
	"github.com/msomdec/people-registry/internal/view"
)

// AuthHandler serves the registration, sign-in and sign-out forms.
type AuthHandler struct {
	auth         *service.AuthService
	limiter      *service.AttemptLimiter
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler. A nil limiter disables
// throttling.
func NewAuthHandler(auth *service.AuthService, limiter *service.AttemptLimiter, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, limiter: limiter, cookieSecure: cookieSecure}
}

func (h *AuthHandler) allow(key string) bool {
	return h.limiter == nil || h.limiter.Allow(key)
}

// HandleLoginPage renders the sign-in form.
// GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, view.LoginPage(view.LoginForm{
		Nav:       view.NavFor(PrincipalFromContext(r.Context())),
		ReturnURL: safeReturnURL(r.URL.Query().Get("return_url")),
	}))
}

// HandleLogin checks the credentials, sets the auth cookie and returns
// the caller to where the challenge came from.
// POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	form := view.LoginForm{Email: email, ReturnURL: safeReturnURL(r.FormValue("return_url"))}

	key := "login:" + clientIP(r) + "|" + strings.ToLower(email)
	if !h.allow(key) {
		form.Error = "Too many sign-in attempts. Please wait a minute and try again."
		renderPage(w, r, http.StatusTooManyRequests, view.LoginPage(form))
		return
	}

	token, err := h.auth.Login(r.Context(), email, r.FormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			form.Error = "Invalid email or password."
			renderPage(w, r, http.StatusUnauthorized, view.LoginPage(form))
			return
		}
		slog.Error("login user", "error", err)
		form.Error = "An unexpected error occurred. Please try again."
		renderPage(w, r, http.StatusInternalServerError, view.LoginPage(form))
		return
	}
	if h.limiter != nil {
		h.limiter.Reset(key)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(service.TokenTTL.Seconds()),
	})
	http.Redirect(w, r, form.ReturnURL, http.StatusSeeOther)
}

// HandleRegisterPage renders the registration form.
// GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, view.RegisterPage(view.RegisterForm{
		Nav: view.NavFor(PrincipalFromContext(r.Context())),
	}))
}

// HandleRegister creates an account and sends the user to sign in.
// POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	form := view.RegisterForm{
		Email:       strings.TrimSpace(r.FormValue("email")),
		DisplayName: strings.TrimSpace(r.FormValue("display_name")),
	}

	if !h.allow("register:" + clientIP(r)) {
		form.Error = "Too many registration attempts. Please wait a minute and try again."
		renderPage(w, r, http.StatusTooManyRequests, view.RegisterPage(form))
		return
	}

	_, err := h.auth.Register(r.Context(), form.Email, form.DisplayName, r.FormValue("password"), r.FormValue("confirm_password"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			form.Error = "An account with that email already exists."
			renderPage(w, r, http.StatusConflict, view.RegisterPage(form))
		case errors.Is(err, domain.ErrInvalidInput):
			form.Error = err.Error()
			renderPage(w, r, http.StatusUnprocessableEntity, view.RegisterPage(form))
		default:
			slog.Error("register user", "error", err)
			form.Error = "An unexpected error occurred. Please try again."
			renderPage(w, r, http.StatusInternalServerError, view.RegisterPage(form))
		}
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleLogout clears the auth cookie.
// POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/people", http.StatusSeeOther)
}

// HandleAccessDenied is the target of the access-denied redirect.
// GET /account/access-denied
func (h *AuthHandler) HandleAccessDenied(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusForbidden, view.AccessDeniedPage(PrincipalFromContext(r.Context())))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
