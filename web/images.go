package web

import (
	"fmt"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type ImagePage struct {
	*Templates
	Dset   string
	Page   int
	Pages  int
	Total  int
	Lowest bool
	Rows   []int
	Cols   []int
	Width  int
	Height int
	view   *Viewer
}

// Base data for handler functions to view the dataset images ranked by score
func NewImagePage(t *Templates, view *Viewer, scale float64, rows, cols int) *ImagePage {
	p := &ImagePage{view: view, Templates: t, Page: 1, Dset: "train"}
	for _, name := range []string{"highest", "lowest", "prev", "next"} {
		p.AddOption(Link{Name: name, Url: "./" + name})
	}
	dims := view.Data["train"].Shape()
	if len(dims) >= 2 {
		p.Width = int(float64(dims[len(dims)-1]) * scale)
		p.Height = int(float64(dims[len(dims)-2]) * scale)
		p.Rows = seq(rows)
		p.Cols = seq(cols)
	}
	return p
}

// Handler function for the main image page
func (p *ImagePage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		p.Dset = mux.Vars(r)["dset"]
		p.restoreOptions(r)
		base := "/images/" + p.Dset + "/"
		p.Select(base)
		sel := []string{"highest"}
		if p.Lowest {
			sel = []string{"lowest"}
		}
		p.SelectOptions(sel)
		p.Heading = p.view.heading()
		tmpl := "blank"
		if _, ok := p.view.Data[p.Dset]; ok {
			tmpl = "images"
			p.Dropdown = []Link{
				{Name: "train", Url: "/images/train/", Selected: p.Dset == "train"},
				{Name: "test", Url: "/images/test/", Selected: p.Dset == "test"},
			}
		} else {
			p.Dropdown = nil
		}
		p.Exec(w, tmpl, p, true)
	}
}

// Handler function for the frame with the grid of images
func (p *ImagePage) Grid() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		p.Dset = mux.Vars(r)["dset"]
		p.Total, p.Pages = p.pageCount()
		if p.Page > p.Pages || p.Page < 1 {
			p.Page = 1
		}
		p.Exec(w, "grid", p, false)
	}
}

// Set option from top menu
func (p *ImagePage) Setopt() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		vars := mux.Vars(r)
		p.Dset = vars["dset"]
		p.Total, p.Pages = p.pageCount()
		switch vars["opt"] {
		case "highest":
			p.Lowest = false
		case "lowest":
			p.Lowest = true
		case "prev":
			p.Page = mod(p.Page-1, 1, p.Pages)
		case "next":
			p.Page = mod(p.Page+1, 1, p.Pages)
		}
		p.saveOptions(w, r)
		http.Redirect(w, r, "/images/"+p.Dset+"/", http.StatusFound)
	}
}

// Handler function to serve one dataset image as png
func (p *ImagePage) Image() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		vars := mux.Vars(r)
		d, ok := p.view.Data[vars["dset"]]
		id, _ := strconv.Atoi(vars["id"])
		if !ok || id < 0 || id >= d.Len() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, d.Images[id]); err != nil {
			logError(w, err)
		}
	}
}

// Index gives the dataset position for grid cell (row, col) on the current page
func (p *ImagePage) Index(row, col int) int {
	ranked := p.view.Ranked(p.Dset)
	i := (p.Page-1)*len(p.Rows)*len(p.Cols) + row*len(p.Cols) + col
	if i >= len(ranked) {
		return -1
	}
	if p.Lowest {
		i = len(ranked) - 1 - i
	}
	return ranked[i]
}

// Url for the image at grid cell (row, col)
func (p *ImagePage) Url(row, col int) string {
	id := p.Index(row, col)
	if id < 0 {
		return ""
	}
	return fmt.Sprintf("/img/%s/%d", p.Dset, id)
}

// Title gives the class label and score for grid cell (row, col)
func (p *ImagePage) Title(row, col int) string {
	id := p.Index(row, col)
	if id < 0 {
		return ""
	}
	d := p.view.Data[p.Dset]
	label := d.Class[d.Labels[id]]
	if p.view.Result() == nil {
		return label
	}
	return fmt.Sprintf("%s %.3f", label, p.view.scoreAt(p.Dset, id))
}

func (p *ImagePage) pageCount() (total, pages int) {
	total = p.view.Data[p.Dset].Len()
	perPage := len(p.Rows) * len(p.Cols)
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return total, pages
}

func (p *ImagePage) restoreOptions(r *http.Request) {
	s := p.session(r)
	if v, ok := s.Values["page"].(int); ok {
		p.Page = v
	}
	if v, ok := s.Values["lowest"].(bool); ok {
		p.Lowest = v
	}
}

func (p *ImagePage) saveOptions(w http.ResponseWriter, r *http.Request) {
	s := p.session(r)
	s.Values["page"] = p.Page
	s.Values["lowest"] = p.Lowest
	if err := s.Save(r, w); err != nil {
		logError(w, err)
	}
}
