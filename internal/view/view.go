// Package view holds the templ components for every page. Sources live in
// the .templ files; the _templ.go files are generated from them with
// `templ generate`.
package view

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/msomdec/people-registry/internal/domain"
)

// Nav is the signed-in state shown in the navigation bar.
type Nav struct {
	SignedIn    bool
	DisplayName string
	IsAdmin     bool
}

// NavFor builds the navigation state for p, which may be nil.
func NavFor(p *domain.Principal) Nav {
	if p == nil {
		return Nav{}
	}
	name := p.DisplayName
	if name == "" {
		name = p.Email
	}
	return Nav{SignedIn: true, DisplayName: name, IsAdmin: p.IsAdministrator()}
}

// PersonRow is one line of the people table.
type PersonRow struct {
	Person    domain.Person
	CanEdit   bool
	CanDelete bool
}

// PeopleList is the data for the list page and its table fragment.
type PeopleList struct {
	Nav              Nav
	Rows             []PersonRow
	Search           string
	Sort             string
	NextLocationSort domain.SortOrder
	NextSexSort      domain.SortOrder
}

// NewPeopleList prepares list data. Edit and delete links are shown only
// where the viewer could use them; the server still checks every request.
func NewPeopleList(p *domain.Principal, people []domain.Person, search, sort string) PeopleList {
	rows := make([]PersonRow, len(people))
	for i, person := range people {
		rows[i] = PersonRow{
			Person:    person,
			CanEdit:   canEdit(p, &person),
			CanDelete: p.IsAdministrator(),
		}
	}
	return PeopleList{
		Nav:              NavFor(p),
		Rows:             rows,
		Search:           search,
		Sort:             sort,
		NextLocationSort: domain.NextLocationSort(sort),
		NextSexSort:      domain.NextSexSort(sort),
	}
}

// signals seeds the datastar store the live search reads from.
func (d PeopleList) signals() string {
	b, _ := json.Marshal(struct {
		SearchString string `json:"searchString"`
		SortOrder    string `json:"sortOrder"`
	}{d.Search, d.Sort})
	return string(b)
}

// sortURL links a column header to order while keeping the current filter.
func (d PeopleList) sortURL(order domain.SortOrder) string {
	return "/people?sortOrder=" + url.QueryEscape(string(order)) + "&searchString=" + url.QueryEscape(d.Search)
}

// PersonForm is the data for the create and edit form. ID is zero when
// creating.
type PersonForm struct {
	Nav     Nav
	ID      int64
	Version int
	Image   string
	Input   domain.PersonInput
	Error   string
}

// Action is the URL the form posts to.
func (f PersonForm) Action() string {
	if f.ID == 0 {
		return "/people"
	}
	return personURL(f.ID, "/edit")
}

func (f PersonForm) title() string {
	if f.ID == 0 {
		return "Add person"
	}
	return "Edit person"
}

// LoginForm is the data for the sign-in page.
type LoginForm struct {
	Nav       Nav
	Email     string
	ReturnURL string
	Error     string
}

// RegisterForm is the data for the registration page.
type RegisterForm struct {
	Nav         Nav
	Email       string
	DisplayName string
	Error       string
}

func canEdit(p *domain.Principal, person *domain.Person) bool {
	return p.Owns(person) || p.IsAdministrator()
}

func personURL(id int64, suffix string) string {
	return "/people/" + strconv.FormatInt(id, 10) + suffix
}

func imageURL(name string) string {
	return "/images/" + url.PathEscape(name)
}

func fullName(p *domain.Person) string {
	return p.Name + " " + p.Surname
}

func sexLabel(isWoman bool) string {
	if isWoman {
		return "Woman"
	}
	return "Man"
}

func ownerName(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.DisplayName
}

func statusLine(status int) string {
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}
