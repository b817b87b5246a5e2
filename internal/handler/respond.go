package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/service"
	"github.com/msomdec/people-registry/internal/view"
)

// renderPage writes c as an HTML response with the given status.
func renderPage(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render page", "path", r.URL.Path, "error", err)
	}
}

// respondError turns a service error into the matching HTML response:
// an error page, a redirect to the access-denied page, or a login
// challenge. op names the failed operation in the log.
func respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	p := PrincipalFromContext(r.Context())

	switch service.DecisionOf(err) {
	case service.DenyNotFound:
		renderPage(w, r, http.StatusNotFound, view.ErrorPage(p, http.StatusNotFound, ""))
		return
	case service.DenyRedirect:
		http.Redirect(w, r, "/account/access-denied", http.StatusSeeOther)
		return
	case service.DenyChallenge:
		http.Redirect(w, r, loginURL(r), http.StatusSeeOther)
		return
	}

	if errors.Is(err, domain.ErrConflict) {
		renderPage(w, r, http.StatusConflict, view.ErrorPage(p, http.StatusConflict,
			"This record was changed by someone else while you were editing it. Reload it and try again."))
		return
	}

	slog.Error(op, "error", err)
	renderPage(w, r, http.StatusInternalServerError, view.ErrorPage(p, http.StatusInternalServerError,
		"An unexpected error occurred. Please try again."))
}
