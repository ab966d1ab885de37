package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/DeepakTatachar/curvature-clues/stats"
)

const histogramBins = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type ScorePage struct {
	*Templates
	view *Viewer
}

type SummaryRow struct {
	Name         string
	Count        int
	Mean, StdDev template.HTML
	Min, Max     float64
}

// Base data for handler functions to display score array summaries
func NewScorePage(t *Templates, view *Viewer) *ScorePage {
	p := &ScorePage{view: view}
	p.Templates = t.Select("/scores")
	p.AddOption(Link{Name: "score train set", Url: "/scores/run/train"})
	p.AddOption(Link{Name: "score test set", Url: "/scores/run/test"})
	return p
}

// Handler function for the main scores page
func (p *ScorePage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		p.Heading = p.view.heading()
		p.Dropdown = nil
		for _, name := range p.view.ScoreFiles() {
			p.Dropdown = append(p.Dropdown, Link{
				Name:     name,
				Url:      "/scores/load/" + name,
				Selected: name == p.view.resName,
			})
		}
		p.Exec(w, "scores", p, true)
	}
}

// Handler function for the frame with the summary table and histogram
func (p *ScorePage) Frame() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		tmpl := "blank"
		if p.view.Result() != nil {
			tmpl = "stats"
		}
		p.Exec(w, tmpl, p, false)
	}
}

// Handler function to load a saved score array
func (p *ScorePage) Load() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		name := mux.Vars(r)["file"]
		if err := p.view.Load(name); err != nil {
			logError(w, err)
			return
		}
		http.Redirect(w, r, "/scores", http.StatusFound)
	}
}

// Handler function to start a new scoring run
func (p *ScorePage) Run() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.view.Lock()
		defer p.view.Unlock()
		p.view.Run(mux.Vars(r)["dset"] == "test", runStep(r, p.view.H))
		http.Redirect(w, r, "/scores", http.StatusFound)
	}
}

// runStep gives the finite difference step for a scoring run, the h query
// parameter overrides the viewer default.
func runStep(r *http.Request, def float64) float64 {
	if s := r.FormValue("h"); s != "" {
		if h, err := strconv.ParseFloat(s, 64); err == nil && h > 0 {
			return h
		}
	}
	return def
}

// Handler function for websocket connection
func (p *ScorePage) Websocket() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logError(w, err)
			return
		}
		p.view.Lock()
		p.view.conn = conn
		p.view.Unlock()
	}
}

// Summary table with one row per score channel
func (p *ScorePage) Summary() []SummaryRow {
	res := p.view.Result()
	if res == nil {
		return nil
	}
	rows := []SummaryRow{}
	for _, c := range []struct {
		name   string
		values []float32
	}{
		{"mentr", res.Scores},
		{"loss", res.Loss},
		{"max prob", res.MaxProb},
	} {
		if len(c.values) == 0 {
			continue
		}
		avg := new(stats.Average)
		min, max := float64(c.values[0]), float64(c.values[0])
		for _, v := range c.values {
			x := float64(v)
			avg.Add(x)
			if x < min {
				min = x
			}
			if x > max {
				max = x
			}
		}
		rows = append(rows, SummaryRow{
			Name:   c.name,
			Count:  int(avg.Count),
			Mean:   avg.HTML(),
			StdDev: template.HTML(fmt.Sprintf("%.3g", avg.StdDev)),
			Min:    min,
			Max:    max,
		})
	}
	return rows
}

// Histogram of the mentr scores as an svg plot
func (p *ScorePage) HistPlot(width, height int) template.HTML {
	res := p.view.Result()
	if res == nil || len(res.Scores) == 0 {
		return ""
	}
	max := float64(res.Scores[0])
	for _, v := range res.Scores {
		if float64(v) > max {
			max = float64(v)
		}
	}
	if max <= 0 {
		max = 1
	}
	hist := stats.NewHistogram(0, max, histogramBins)
	for _, v := range res.Scores {
		hist.Add(float64(v))
	}
	plt := newPlot()
	plt.X.Label.Text = "mentr score"
	plt.Y.Label.Text = "count"
	values := make(plotter.Values, len(hist.Counts))
	for i, n := range hist.Counts {
		values[i] = float64(n)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(3))
	if err != nil {
		log.Println("plot error:", err)
		return ""
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	plt.Add(bars)
	labels := make([]string, len(hist.Counts))
	for i, c := range hist.Centers() {
		if i%10 == 0 {
			labels[i] = fmt.Sprintf("%.2f", c)
		}
	}
	plt.NominalX(labels...)
	return writePlot(plt, width, height)
}

func newPlot() *plot.Plot {
	p := plot.New()
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(12)
	p.Add(plotter.NewGrid())
	return p
}

func writePlot(p *plot.Plot, w, h int) template.HTML {
	var buf bytes.Buffer
	writer, err := p.WriterTo(vg.Inch*vg.Length(w)/vgsvg.DPI, vg.Inch*vg.Length(h)/vgsvg.DPI, "svg")
	if err != nil {
		log.Println("error writing plot:", err)
		return ""
	}
	writer.WriteTo(&buf)
	return template.HTML(buf.String())
}
