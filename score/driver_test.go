package score

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/DeepakTatachar/curvature-clues/img"
	"github.com/DeepakTatachar/curvature-clues/nnet"
)

func makeData(n, size int) *img.Data {
	rng := rand.New(rand.NewSource(11))
	images := make([]*img.Image, n)
	labels := make([]int32, n)
	for i := range images {
		m := img.NewGray(size, size)
		pix := m.Pixels(0)
		for j := range pix {
			pix[j] = rng.Float32()
		}
		images[i] = m
		labels[i] = int32(i % 2)
	}
	return img.NewData([]string{"a", "b"}, labels, images)
}

func TestRunner(t *testing.T) {
	saved := nnet.DataDir
	nnet.DataDir = t.TempDir()
	defer func() { nnet.DataDir = saved }()

	data := makeData(10, 4)
	conf := nnet.Config{TestBatch: 4}.AddLayers(
		nnet.Flatten{},
		nnet.Linear{Nout: 2},
		nnet.LogRegression{},
	)
	rng := rand.New(rand.NewSource(5))
	net := nnet.New(conf, data.Shape())
	net.InitWeights(rng)

	index := []int32{7, 3, 9, 1, 5, 0, 8, 2, 6, 4}
	dset := nnet.NewDataset(data, 4, index, nil, false)
	r := &Runner{
		Net:   net,
		Data:  dset,
		Model: "test_1",
		Arch:  "lenet5_test",
		H:     0.001,
	}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatal("expected one result, got", len(results))
	}
	res := results[0]
	if len(res.Scores) != data.Len() {
		t.Fatal("score array length: got", len(res.Scores))
	}

	// scores must land at the canonical id regardless of iteration order
	full := nnet.NewDataset(data, 10, nil, nil, false)
	x, y, _ := full.NextBatch()
	diag := Diagnostics(net, x, y)
	for id := range res.Scores {
		if math.Abs(float64(res.Scores[id]-diag.Mentr[id])) > 1e-5 {
			t.Errorf("score for id %d: got %g expect %g", id, res.Scores[id], diag.Mentr[id])
		}
		if math.Abs(float64(res.Loss[id]-diag.Loss[id])) > 1e-5 {
			t.Errorf("loss for id %d: got %g expect %g", id, res.Loss[id], diag.Loss[id])
		}
	}

	// the result is also saved locally
	loaded, err := LoadResult("lenet5_test", res.Name)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Model != "test_1" || len(loaded.Scores) != 10 {
		t.Error("loaded result mismatch:", loaded.Model, len(loaded.Scores))
	}
}
