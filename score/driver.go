package score

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/DeepakTatachar/curvature-clues/blob"
	"github.com/DeepakTatachar/curvature-clues/nnet"
	"github.com/DeepakTatachar/curvature-clues/stats"
)

// Result is the completed score array for one transform: Scores[i] is the
// mentr value for canonical dataset example i.
type Result struct {
	Name    string
	Model   string
	Test    bool
	Tid     int
	Scores  []float32
	Loss    []float32
	MaxProb []float32
}

// Encode the result to gob format
func (r *Result) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadResult decodes a result in gob format
func ReadResult(rd io.Reader) (*Result, error) {
	r := new(Result)
	if err := gob.NewDecoder(rd).Decode(r); err != nil {
		return nil, fmt.Errorf("error decoding result: %s", err)
	}
	return r, nil
}

// LoadResult reads a result file saved under DataDir/scores/<arch>.
// name is the full file name as returned by BlobName.
func LoadResult(arch, name string) (*Result, error) {
	f, err := os.Open(path.Join(nnet.DataDir, "scores", arch, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadResult(f)
}

// BlobName derives the blob object name from the model name, the h parameter
// and the transform id, matching the convention used for the training runs.
func BlobName(model string, h float64, tid int, test bool) string {
	name := fmt.Sprintf("m_entropy_%s_%v_tid%d", model, h, tid)
	if test {
		name += "_test"
	}
	return name + ".sc"
}

// Runner computes score arrays over a dataset. Store may be nil in which case
// results are only written locally. Progress is called after each batch if set.
type Runner struct {
	Net      *nnet.Network
	Data     *nnet.Dataset
	Store    *blob.Store
	Log      *log.Logger
	Progress func(batch, batches int)

	Model        string
	Arch         string
	H            float64
	Test         bool
	Container    string
	ContainerDir string
	Transforms   []Transform
}

// Run iterates the dataset once per transform, filling the score array via
// the canonical index mapping, then saves and uploads each completed result.
// The score array length always equals the dataset length and each entry is
// written exactly once per pass.
func (r *Runner) Run(ctx context.Context) ([]*Result, error) {
	transforms := r.Transforms
	if len(transforms) == 0 {
		transforms = []Transform{{}}
	}
	dsetLen := r.Data.Len()
	var results []*Result
	for tid, trans := range transforms {
		res := &Result{
			Name:    BlobName(r.Model, r.H, tid, r.Test),
			Model:   r.Model,
			Test:    r.Test,
			Tid:     tid,
			Scores:  make([]float32, dsetLen),
			Loss:    make([]float32, dsetLen),
			MaxProb: make([]float32, dsetLen),
		}
		written := 0
		r.Data.Rewind()
		for batch := 0; batch < r.Data.Batches; batch++ {
			x, y, ix := r.Data.NextBatch()
			trans.Apply(x)
			diag := Diagnostics(r.Net, x, y)
			for i, id := range ix {
				res.Scores[id] = diag.Mentr[i]
				res.Loss[id] = diag.Loss[i]
				res.MaxProb[id] = diag.MaxProb[i]
			}
			written += len(ix)
			if r.Progress != nil {
				r.Progress(batch+1, r.Data.Batches)
			}
		}
		if written != dsetLen {
			return nil, fmt.Errorf("scored %d examples for dataset of %d", written, dsetLen)
		}
		if err := r.save(ctx, res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) save(ctx context.Context, res *Result) error {
	avg := new(stats.Average)
	for _, v := range res.Scores {
		avg.Add(float64(v))
	}
	r.logf("saving %s: mean score %.4f stddev %.4f", res.Name, avg.Mean, avg.StdDev)
	data, err := res.Bytes()
	if err != nil {
		return fmt.Errorf("error encoding result: %s", err)
	}
	saveDir := path.Join(nnet.DataDir, "scores", r.Arch)
	if err = os.MkdirAll(saveDir, 0755); err != nil {
		return err
	}
	if err = os.WriteFile(path.Join(saveDir, res.Name), data, 0644); err != nil {
		return err
	}
	if r.Store != nil {
		name := res.Name
		if r.ContainerDir != "" {
			name = r.ContainerDir + "/" + name
		}
		r.logf("uploading %s to %s", name, r.Container)
		if err = r.Store.Upload(ctx, r.Container, name, data); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
