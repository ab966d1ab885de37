// Command scoreweb serves a web page to browse score arrays and the dataset
// examples they rank.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/DeepakTatachar/curvature-clues/nnet"
	"github.com/DeepakTatachar/curvature-clues/web"
)

const (
	scale = 3
	rows  = 8
	cols  = 10
)

func main() {
	log.SetFlags(0)
	godotenv.Load()
	var dataset, suffix, addr string
	var epoch int
	var h float64
	flag.StringVar(&dataset, "dataset", "cifar10", "dataset to use")
	flag.StringVar(&suffix, "suffix", "wd1", "model name suffix")
	flag.IntVar(&epoch, "epoch", 30, "checkpoint epoch to load")
	flag.StringVar(&addr, "addr", ":8080", "listen address")
	flag.Float64Var(&h, "h", 0.001, "finite difference step for scoring runs")
	flag.Parse()

	view, err := web.NewViewer(dataset, suffix, epoch)
	nnet.CheckErr(err)
	view.H = h

	t, err := web.NewTemplates()
	nnet.CheckErr(err)
	t.AddMenuItem(web.Link{Url: "/scores", Name: "scores"})
	t.AddMenuItem(web.Link{Url: "/images/train/", Name: "images"})

	scorePage := web.NewScorePage(t.Clone(), view)
	imagePage := web.NewImagePage(t.Clone(), view, scale, rows, cols)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/scores", http.StatusFound))
	r.PathPrefix("/static/").Handler(http.FileServer(http.Dir(web.AssetDir)))

	r.HandleFunc("/scores", scorePage.Base())
	r.HandleFunc("/scores/frame", scorePage.Frame())
	r.HandleFunc("/scores/load/{file}", scorePage.Load())
	r.HandleFunc("/scores/run/{dset:(?:train|test)}", scorePage.Run())
	r.HandleFunc("/ws", scorePage.Websocket())

	r.Handle("/images", http.RedirectHandler("/images/train/", http.StatusFound))
	r.HandleFunc("/images/{dset}/", imagePage.Base())
	r.HandleFunc("/images/{dset}/grid", imagePage.Grid())
	r.HandleFunc("/images/{dset}/{opt:(?:highest|lowest|prev|next)}", imagePage.Setopt())
	r.HandleFunc("/img/{dset}/{id:[0-9]+}", imagePage.Image())

	auth := web.NewAuthMiddleware()
	fmt.Printf("serving web page at http://localhost%s\n", addr)
	err = http.ListenAndServe(addr, auth.Middleware(r))
	nnet.CheckErr(err)
}
