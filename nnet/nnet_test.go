package nnet

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/DeepakTatachar/curvature-clues/img"
	"github.com/DeepakTatachar/curvature-clues/num"
)

// two class dataset of dark and bright images
func testData(n, size int) *img.Data {
	rng := rand.New(rand.NewSource(99))
	images := make([]*img.Image, n)
	labels := make([]int32, n)
	for i := range images {
		m := img.NewGray(size, size)
		level := float32(0.1)
		if i%2 == 1 {
			level = 0.9
			labels[i] = 1
		}
		pix := m.Pixels(0)
		for j := range pix {
			pix[j] = level + 0.05*rng.Float32()
		}
		images[i] = m
	}
	return img.NewData([]string{"dark", "bright"}, labels, images)
}

func randInput(rng *rand.Rand, dims ...int) *num.Array {
	x := num.NewArray(dims...)
	for i := range x.Data() {
		x.Data()[i] = rng.Float32()
	}
	return x
}

func TestNetworkShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	net := New(LeNet5(10), []int{1, 28, 28})
	net.InitWeights(rng)
	x := randInput(rng, 4, 1, 28, 28)
	y := net.Fprop(x, false)
	if dims := y.Dims(); dims[0] != 4 || dims[1] != 10 {
		t.Fatal("output dims: got", dims)
	}
	for i := 0; i < 4; i++ {
		var sum float32
		for _, v := range y.Row(i) {
			sum += v
		}
		if math.Abs(float64(sum)-1) > 1e-5 {
			t.Error("row", i, "sums to", sum)
		}
	}
}

func TestLatent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	net := New(LeNet5(10), []int{1, 28, 28})
	net.InitWeights(rng)
	x := randInput(rng, 3, 1, 28, 28)
	pred, latent := net.FpropLatent(x)
	if dims := pred.Dims(); dims[0] != 3 || dims[1] != 10 {
		t.Error("pred dims: got", dims)
	}
	if dims := latent.Dims(); dims[0] != 3 || dims[1] != 84 {
		t.Error("latent dims: got", dims)
	}
}

func TestDatasetBatches(t *testing.T) {
	data := testData(10, 4)
	index := []int32{3, 1, 4, 0, 9, 5, 8, 6, 7, 2}
	dset := NewDataset(data, 4, index, nil, false)
	if dset.Batches != 3 {
		t.Fatal("batches: got", dset.Batches)
	}
	seen := map[int32]int{}
	var sizes []int
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, ix := dset.NextBatch()
		sizes = append(sizes, x.Dims()[0])
		for i, id := range ix {
			seen[id]++
			if y[i] != data.Labels[id] {
				t.Error("label mismatch for id", id)
			}
		}
	}
	if sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Error("batch sizes: got", sizes)
	}
	for id := int32(0); id < 10; id++ {
		if seen[id] != 1 {
			t.Error("id", id, "seen", seen[id], "times")
		}
	}
	// second pass after rewind covers the same ids
	dset.Rewind()
	seen = map[int32]int{}
	for batch := 0; batch < dset.Batches; batch++ {
		_, _, ix := dset.NextBatch()
		for _, id := range ix {
			seen[id]++
		}
	}
	if len(seen) != 10 {
		t.Error("rewind: saw", len(seen), "ids")
	}
}

func TestDatasetShuffle(t *testing.T) {
	data := testData(8, 4)
	dset := NewDataset(data, 8, nil, nil, false)
	_, _, ix := dset.NextBatch()
	first := append([]int32{}, ix...)
	rng := rand.New(rand.NewSource(1))
	dset.Shuffle(rng)
	_, _, ix = dset.NextBatch()
	same := true
	seen := map[int32]bool{}
	for i, id := range ix {
		if id != first[i] {
			same = false
		}
		seen[id] = true
	}
	if same {
		t.Error("shuffle did not change the order")
	}
	if len(seen) != 8 {
		t.Error("shuffle: saw", len(seen), "ids")
	}
}

func TestSplitData(t *testing.T) {
	data := testData(10, 4)
	train, valid := SplitData(data, 0.2)
	if train.Len() != 8 || valid == nil || valid.Len() != 2 {
		t.Fatal("split 0.2: got", train.Len(), valid)
	}
	if valid.Labels[0] != data.Labels[8] || valid.Labels[1] != data.Labels[9] {
		t.Error("valid labels: got", valid.Labels)
	}
	if train.Labels[7] != data.Labels[7] {
		t.Error("train labels: got", train.Labels)
	}
	train, valid = SplitData(data, 0)
	if train != data || valid != nil {
		t.Error("zero split should return the input data")
	}
	train, valid = SplitData(data, 1)
	if train != data || valid != nil {
		t.Error("full split should return the input data")
	}
}

type testStop struct {
	data *Dataset
}

func (t testStop) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	_, _, pct := net.Accuracy(t.data)
	return pct >= 100 || epoch >= net.MaxEpoch
}

func TestTrain(t *testing.T) {
	data := testData(32, 4)
	conf := Config{
		Eta:          0.5,
		Momentum:     0.9,
		MaxEpoch:     50,
		TrainBatch:   8,
		TestBatch:    8,
		Shuffle:      true,
		FlattenInput: true,
		RandSeed:     1,
	}.AddLayers(
		Linear{Nout: 2},
		LogRegression{},
	)
	rng := SetSeed(conf.RandSeed)
	dset := NewDataset(data, conf.TrainBatch, nil, nil, true)
	net := New(conf, data.Shape())
	net.InitWeights(rng)
	Train(net, dset, rng, testStop{data: dset})
	correct, total, pct := net.Accuracy(dset)
	if pct < 100 {
		t.Errorf("accuracy %d/%d after training", correct, total)
	}
}

func TestCheckpoint(t *testing.T) {
	saved := DataDir
	DataDir = t.TempDir()
	defer func() { DataDir = saved }()

	rng := rand.New(rand.NewSource(7))
	conf := LeNet5(10)
	net := New(conf, []int{1, 28, 28})
	net.InitWeights(rng)
	// update batchnorm running stats away from their initial values
	net.Fprop(randInput(rng, 4, 1, 28, 28), true)

	ckpt := &Checkpoint{Model: "test_model", Epoch: 3, Conf: conf, Params: net.Params()}
	if err := SaveCheckpoint(ckpt, "test_ckpt"); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadCheckpoint("test_ckpt")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Model != "test_model" || loaded.Epoch != 3 {
		t.Error("header mismatch: got", loaded.Model, loaded.Epoch)
	}
	net2 := New(loaded.Conf, []int{1, 28, 28})
	if err := net2.SetParams(loaded.Params); err != nil {
		t.Fatal(err)
	}
	x := randInput(rng, 2, 1, 28, 28)
	y1 := net.Fprop(x, false)
	y2 := net2.Fprop(x, false)
	for i, v := range y1.Data() {
		if math.Abs(float64(v-y2.Data()[i])) > 1e-6 {
			t.Fatal("outputs differ after restore")
		}
	}
}
