package web

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/DeepakTatachar/curvature-clues/img"
	"github.com/DeepakTatachar/curvature-clues/nnet"
	"github.com/DeepakTatachar/curvature-clues/score"
)

// Viewer is the shared state for the web pages: the datasets, the pretrained
// network and the currently loaded score array. Callers should lock the
// viewer before invoking methods on it.
type Viewer struct {
	sync.Mutex
	Model string
	Arch  string
	Conf  nnet.Config
	Data  map[string]*img.Data
	H     float64

	net     *nnet.Network
	index   []int32
	res     *score.Result
	resName string
	ranked  map[string][]int
	running bool
	conn    *websocket.Conn
}

// NewViewer loads the datasets, index mapping and pretrained checkpoint.
func NewViewer(dataset, suffix string, epoch int) (*Viewer, error) {
	v := &Viewer{Data: map[string]*img.Data{}, H: 0.001}
	for _, key := range []string{"train", "test"} {
		d, err := nnet.LoadDataFile(dataset + "_" + key)
		if err != nil {
			return nil, err
		}
		v.Data[key] = d
	}
	index, err := nnet.LoadIndexFile("data_index_" + dataset)
	if err != nil {
		return nil, err
	}
	v.index = index
	ckpt, err := nnet.LoadCheckpoint(fmt.Sprintf("%s_%s%d", dataset, suffix, epoch))
	if err != nil {
		return nil, err
	}
	v.Arch = "lenet5_" + dataset
	v.Model = ckpt.Model
	v.Conf = ckpt.Conf
	v.net = nnet.New(v.Conf, v.Data["train"].Shape())
	if err := v.net.SetParams(ckpt.Params); err != nil {
		return nil, err
	}
	return v, nil
}

// ScoreFiles lists the locally saved score arrays for this architecture.
func (v *Viewer) ScoreFiles() []string {
	dir := path.Join(nnet.DataDir, "scores", v.Arch)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sc") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Load reads the named score array and ranks the dataset examples by score.
func (v *Viewer) Load(name string) error {
	res, err := score.LoadResult(v.Arch, name)
	if err != nil {
		return err
	}
	v.res, v.resName = res, name
	v.ranked = map[string][]int{}
	for _, dset := range []string{"train", "test"} {
		n := v.Data[dset].Len()
		if len(res.Scores) != n {
			continue
		}
		pos := make([]int, n)
		for i := range pos {
			pos[i] = i
		}
		sort.Slice(pos, func(i, j int) bool {
			return v.scoreAt(dset, pos[i]) > v.scoreAt(dset, pos[j])
		})
		v.ranked[dset] = pos
	}
	return nil
}

// Result returns the currently loaded score array, or nil.
func (v *Viewer) Result() *score.Result {
	return v.res
}

// scoreAt gives the score for dataset position i. Train set positions map to
// canonical ids via the index file, test set scores are stored in file order.
// Returns 0 if the loaded score array does not cover the example, e.g. when a
// test set array is loaded while browsing the train set.
func (v *Viewer) scoreAt(dset string, i int) float32 {
	if v.res == nil {
		return 0
	}
	if dset == "train" && i < len(v.index) {
		i = int(v.index[i])
	}
	if i < 0 || i >= len(v.res.Scores) {
		return 0
	}
	return v.res.Scores[i]
}

// Ranked returns dataset positions ordered by descending score.
func (v *Viewer) Ranked(dset string) []int {
	if pos, ok := v.ranked[dset]; ok {
		return pos
	}
	n := v.Data[dset].Len()
	pos := make([]int, n)
	for i := range pos {
		pos[i] = i
	}
	return pos
}

func (v *Viewer) heading() template.HTML {
	s := v.Model
	if v.resName != "" {
		s += ": " + v.resName
	}
	if v.running {
		s += " [scoring]"
	}
	return template.HTML(s)
}

// Run starts a scoring pass in the background, progress is sent over the
// websocket connection if one is open. Results are saved locally, uploads
// are handled by the score command.
func (v *Viewer) Run(test bool, h float64) {
	if v.running {
		log.Println("skip run - already in progress")
		return
	}
	v.running = true
	dset := "train"
	var index []int32
	if test {
		dset = "test"
	} else {
		index = v.index
	}
	batch := v.Conf.TestBatch
	trans := img.NewTransformer(v.Data[dset], img.Normalise, nil)
	data := nnet.NewDataset(v.Data[dset], batch, index, trans, false)
	r := &score.Runner{
		Net:          v.net,
		Data:         data,
		Model:        v.Model,
		Arch:         v.Arch,
		H:            h,
		Test:         test,
		Container:    "curvature-mi-scores",
		ContainerDir: v.Conf.DataSet,
		Progress:     v.progress,
	}
	go func() {
		_, err := r.Run(context.Background())
		v.Lock()
		v.running = false
		if err != nil {
			log.Println("scoring error:", err)
		}
		v.notify(map[string]interface{}{"done": true})
		v.Unlock()
	}()
}

func (v *Viewer) progress(batch, batches int) {
	v.Lock()
	v.notify(map[string]interface{}{"batch": batch, "batches": batches})
	v.Unlock()
}

func (v *Viewer) notify(msg map[string]interface{}) {
	if v.conn == nil {
		return
	}
	if err := v.conn.WriteJSON(msg); err != nil {
		log.Println("websocket write error:", err)
		v.conn = nil
	}
}
