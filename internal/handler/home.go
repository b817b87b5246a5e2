package handler

import (
	"net/http"
)

// HandleHome sends the site root to the people list.
func HandleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/people", http.StatusFound)
}
