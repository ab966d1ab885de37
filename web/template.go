// Package web is a browser front end for inspecting score arrays and the
// dataset examples they were computed from.
package web

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/sessions"
)

// AssetDir is the location of the html templates and static files.
var AssetDir = assetDir()

func assetDir() string {
	if dir := os.Getenv("CURV_ASSETS"); dir != "" {
		return dir
	}
	return "./assets"
}

var authKey = []byte("ahPh0weikee4ohqu")

// Template and main menu definition
type Templates struct {
	*template.Template
	Menu     []Link
	Options  []Link
	Dropdown []Link
	Heading  template.HTML
	Toplevel bool
	store    sessions.Store
}

type Link struct {
	Url      string
	Name     string
	Selected bool
	Submit   bool
}

// Load and parse templates and initialise main menu
func NewTemplates() (*Templates, error) {
	var err error
	t := &Templates{Menu: []Link{}, Options: []Link{}}
	t.Template, err = template.ParseGlob(AssetDir + "/*.html")
	if err != nil {
		return nil, err
	}
	t.store = sessions.NewCookieStore(authKey)
	return t, err
}

func (t *Templates) Clone() *Templates {
	return &Templates{
		Template: t.Template,
		Menu:     append([]Link{}, t.Menu...),
		Options:  append([]Link{}, t.Options...),
		store:    t.store,
	}
}

func (t *Templates) Select(url string) *Templates {
	for i, key := range t.Menu {
		t.Menu[i].Selected = strings.HasPrefix(key.Url, url)
	}
	return t
}

func (t *Templates) AddMenuItem(l Link) *Templates {
	t.Menu = append(t.Menu, l)
	return t
}

func (t *Templates) AddOption(l Link) *Templates {
	t.Options = append(t.Options, l)
	return t
}

func (t *Templates) SelectOptions(names []string) *Templates {
	for i, key := range t.Options {
		t.Options[i].Selected = false
		for _, name := range names {
			if key.Name == name {
				t.Options[i].Selected = true
			}
		}
	}
	return t
}

// Exec renders the named template, toplevel sets the full page wrapper
func (t *Templates) Exec(w http.ResponseWriter, name string, data interface{}, toplevel bool) error {
	t.Toplevel = toplevel
	err := t.ExecuteTemplate(w, name, data)
	if err != nil {
		logError(w, err)
	}
	return err
}

// session returns the per browser session used to persist page options
func (t *Templates) session(r *http.Request) *sessions.Session {
	s, err := t.store.Get(r, "viewer")
	if err != nil {
		log.Println("session error:", err)
	}
	return s
}

func logError(w http.ResponseWriter, err error) {
	log.Println(err)
	http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func mod(i, min, max int) int {
	if i < min {
		i = max
	}
	if i > max {
		i = min
	}
	return i
}
