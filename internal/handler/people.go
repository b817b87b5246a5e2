package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/msomdec/people-registry/internal/domain"
	"github.com/msomdec/people-registry/internal/service"
	"github.com/msomdec/people-registry/internal/view"
	"github.com/starfederation/datastar-go/datastar"
)

const maxUploadBytes = 10 << 20

// PeopleHandler serves the person pages.
type PeopleHandler struct {
	people *service.PersonService
}

// NewPeopleHandler creates a new PeopleHandler.
func NewPeopleHandler(people *service.PersonService) *PeopleHandler {
	return &PeopleHandler{people: people}
}

// HandleList renders the filtered, sorted list.
// GET /people?searchString=&sortOrder=
func (h *PeopleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	search := r.URL.Query().Get("searchString")
	sort := r.URL.Query().Get("sortOrder")

	people, err := h.people.List(r.Context(), search, sort)
	if err != nil {
		respondError(w, r, "list people", err)
		return
	}

	renderPage(w, r, http.StatusOK, view.PeopleListPage(view.NewPeopleList(p, people, search, sort)))
}

// HandleSearch re-renders the results table for live search and patches it
// into the page over SSE.
// GET /people/search
func (h *PeopleHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var signals struct {
		SearchString string `json:"searchString"`
		SortOrder    string `json:"sortOrder"`
	}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	people, err := h.people.List(r.Context(), signals.SearchString, signals.SortOrder)
	if err != nil {
		respondError(w, r, "search people", err)
		return
	}

	data := view.NewPeopleList(PrincipalFromContext(r.Context()), people, signals.SearchString, signals.SortOrder)
	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(
		view.PeopleTable(data),
		datastar.WithSelectorID("people-table"),
		datastar.WithModeInner(),
	)
}

// HandleDetail renders one person.
// GET /people/{id}
func (h *PeopleHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, "", domain.ErrNotFound)
		return
	}

	person, err := h.people.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, "get person", err)
		return
	}

	renderPage(w, r, http.StatusOK, view.PersonDetailPage(PrincipalFromContext(r.Context()), person))
}

// HandleNew renders an empty create form.
// GET /people/new
func (h *PeopleHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, view.PersonFormPage(view.PersonForm{
		Nav: view.NavFor(PrincipalFromContext(r.Context())),
	}))
}

// HandleCreate stores a new person owned by the caller.
// POST /people
func (h *PeopleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	in, upload, err := parsePersonForm(w, r)
	if err != nil {
		renderPage(w, r, http.StatusBadRequest, view.PersonFormPage(view.PersonForm{Nav: view.NavFor(p), Input: in, Error: err.Error()}))
		return
	}
	if upload != nil {
		defer upload.close()
	}

	if _, err := h.people.Create(r.Context(), p, in, upload.imageUpload()); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			renderPage(w, r, http.StatusUnprocessableEntity, view.PersonFormPage(view.PersonForm{Nav: view.NavFor(p), Input: in, Error: err.Error()}))
			return
		}
		respondError(w, r, "create person", err)
		return
	}

	http.Redirect(w, r, "/people", http.StatusSeeOther)
}

// HandleEditForm renders the edit form for a record the caller may change.
// GET /people/{id}/edit
func (h *PeopleHandler) HandleEditForm(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, "", domain.ErrNotFound)
		return
	}

	person, err := h.people.EditForm(r.Context(), p, id)
	if err != nil {
		respondError(w, r, "load person for edit", err)
		return
	}

	renderPage(w, r, http.StatusOK, view.PersonFormPage(view.PersonForm{
		Nav:     view.NavFor(p),
		ID:      person.ID,
		Version: person.Version,
		Image:   person.Image,
		Input:   domain.InputOf(person),
	}))
}

// HandleEdit applies an edit submission.
// POST /people/{id}/edit
func (h *PeopleHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, "", domain.ErrNotFound)
		return
	}

	in, upload, err := parsePersonForm(w, r)
	if err != nil {
		renderPage(w, r, http.StatusBadRequest, view.PersonFormPage(view.PersonForm{Nav: view.NavFor(p), ID: id, Input: in, Error: err.Error()}))
		return
	}
	if upload != nil {
		defer upload.close()
	}

	formID, _ := strconv.ParseInt(r.FormValue("id"), 10, 64)
	version, _ := strconv.Atoi(r.FormValue("version"))

	person, err := h.people.Update(r.Context(), p, id, service.PersonEdit{
		ID:      formID,
		Version: version,
		Input:   in,
		Image:   upload.imageUpload(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) && person != nil {
			renderPage(w, r, http.StatusUnprocessableEntity, view.PersonFormPage(view.PersonForm{
				Nav:     view.NavFor(p),
				ID:      person.ID,
				Version: version,
				Image:   person.Image,
				Input:   in,
				Error:   err.Error(),
			}))
			return
		}
		respondError(w, r, "update person", err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/people/%d", person.ID), http.StatusSeeOther)
}

// HandleDeleteForm renders the delete confirmation.
// GET /people/{id}/delete
func (h *PeopleHandler) HandleDeleteForm(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, "", domain.ErrNotFound)
		return
	}

	person, err := h.people.DeleteForm(r.Context(), p, id)
	if err != nil {
		respondError(w, r, "load person for delete", err)
		return
	}

	renderPage(w, r, http.StatusOK, view.PersonDeletePage(p, person))
}

// HandleDelete removes a record. Administrators only.
// POST /people/{id}/delete
func (h *PeopleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, r, "", domain.ErrNotFound)
		return
	}

	if err := h.people.Delete(r.Context(), PrincipalFromContext(r.Context()), id); err != nil {
		respondError(w, r, "delete person", err)
		return
	}

	http.Redirect(w, r, "/people", http.StatusSeeOther)
}

// pathID parses the {id} path value. A malformed id is reported the same
// way as a missing record.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

type formUpload struct {
	file     multipart.File
	filename string
}

func (u *formUpload) close() { u.file.Close() }

func (u *formUpload) imageUpload() *domain.ImageUpload {
	if u == nil {
		return nil
	}
	return &domain.ImageUpload{Filename: u.filename, Content: u.file}
}

// parsePersonForm reads the allow-listed fields and the optional image.
// Fields not in domain.PersonInput are never read.
func parsePersonForm(w http.ResponseWriter, r *http.Request) (domain.PersonInput, *formUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return domain.PersonInput{}, nil, fmt.Errorf("the upload could not be read (limit %d MB)", maxUploadBytes>>20)
		}
		if err := r.ParseForm(); err != nil {
			return domain.PersonInput{}, nil, errors.New("the form could not be read")
		}
	}

	in := domain.PersonInput{
		Name:             strings.TrimSpace(r.FormValue("name")),
		Surname:          strings.TrimSpace(r.FormValue("surname")),
		Description:      strings.TrimSpace(r.FormValue("description")),
		LastSeenLocation: strings.TrimSpace(r.FormValue("last_seen_location")),
		IsWoman:          r.FormValue("is_woman") == "true",
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return in, nil, nil
		}
		return in, nil, errors.New("the image could not be read")
	}
	if header.Filename == "" && header.Size == 0 {
		file.Close()
		return in, nil, nil
	}
	return in, &formUpload{file: file, filename: header.Filename}, nil
}
