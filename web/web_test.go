package web

import (
	"net/http/httptest"
	"os"
	"path"
	"testing"

	"github.com/DeepakTatachar/curvature-clues/score"
)

func TestHelpers(t *testing.T) {
	if s := seq(3); len(s) != 3 || s[2] != 2 {
		t.Error("seq: got", s)
	}
	if v := mod(0, 1, 5); v != 5 {
		t.Error("mod underflow: got", v)
	}
	if v := mod(6, 1, 5); v != 1 {
		t.Error("mod overflow: got", v)
	}
	if v := mod(3, 1, 5); v != 3 {
		t.Error("mod: got", v)
	}
}

func TestScoreAt(t *testing.T) {
	v := &Viewer{index: []int32{2, 0, 1}}
	if s := v.scoreAt("train", 0); s != 0 {
		t.Error("no result loaded: got", s)
	}
	v.res = &score.Result{Scores: []float32{0.5, 1.5, 2.5}}
	if s := v.scoreAt("train", 0); s != 2.5 {
		t.Error("train position 0: got", s)
	}
	if s := v.scoreAt("test", 1); s != 1.5 {
		t.Error("test position 1: got", s)
	}
	// test set array loaded while browsing the train set
	v.res = &score.Result{Scores: []float32{0.5}}
	if s := v.scoreAt("train", 0); s != 0 {
		t.Error("short array: got", s)
	}
	if s := v.scoreAt("test", 5); s != 0 {
		t.Error("past the end: got", s)
	}
}

func TestRunStep(t *testing.T) {
	r := httptest.NewRequest("GET", "/scores/run/train", nil)
	if h := runStep(r, 0.001); h != 0.001 {
		t.Error("default: got", h)
	}
	r = httptest.NewRequest("GET", "/scores/run/train?h=0.01", nil)
	if h := runStep(r, 0.001); h != 0.01 {
		t.Error("query param: got", h)
	}
	r = httptest.NewRequest("GET", "/scores/run/train?h=-1", nil)
	if h := runStep(r, 0.001); h != 0.001 {
		t.Error("invalid param: got", h)
	}
}

func TestTemplates(t *testing.T) {
	dir := t.TempDir()
	src := `{{define "blank"}}<p>empty</p>{{end}}`
	if err := os.WriteFile(path.Join(dir, "blank.html"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	saved := AssetDir
	AssetDir = dir
	defer func() { AssetDir = saved }()

	tmpl, err := NewTemplates()
	if err != nil {
		t.Fatal(err)
	}
	tmpl.AddMenuItem(Link{Url: "/scores", Name: "scores"})
	tmpl.AddMenuItem(Link{Url: "/images/train/", Name: "images"})
	tmpl.Select("/images/")
	if tmpl.Menu[0].Selected || !tmpl.Menu[1].Selected {
		t.Error("select: got", tmpl.Menu)
	}
	c := tmpl.Clone()
	c.Menu[0].Name = "changed"
	if tmpl.Menu[0].Name != "scores" {
		t.Error("clone should copy the menu")
	}
}
