package score

import (
	"bytes"
	"math"
	"math/rand"
	stdreflect "reflect"
	"testing"

	"github.com/DeepakTatachar/curvature-clues/num"
)

func TestMentr(t *testing.T) {
	probs := num.NewArrayData([]float32{0.7, 0.2, 0.1}, 1, 3)
	got := Mentr(probs, []int32{0})
	expect := -(1-0.7)*math.Log(0.7+Epsilon) -
		0.2*math.Log(1-0.2+Epsilon) - 0.1*math.Log(1-0.1+Epsilon)
	if math.Abs(float64(got[0])-expect) > 1e-6 {
		t.Error("got", got[0], "expect", expect)
	}
}

func TestMentrConfident(t *testing.T) {
	// a fully confident correct prediction scores zero
	probs := num.NewArrayData([]float32{1, 0, 0}, 1, 3)
	got := Mentr(probs, []int32{0})
	if math.Abs(float64(got[0])) > 1e-6 {
		t.Error("confident correct: got", got[0])
	}
	// a fully confident wrong prediction stays finite
	got = Mentr(probs, []int32{1})
	v := float64(got[0])
	if math.IsInf(v, 0) || math.IsNaN(v) {
		t.Error("confident wrong: got", got[0])
	}
	if v <= 0 {
		t.Error("confident wrong should score high: got", got[0])
	}
}

func TestMentrOrdering(t *testing.T) {
	// scores increase as confidence in the true class drops
	probs := num.NewArrayData([]float32{
		0.9, 0.05, 0.05,
		0.5, 0.25, 0.25,
		0.1, 0.45, 0.45,
	}, 3, 3)
	got := Mentr(probs, []int32{0, 0, 0})
	if !(got[0] < got[1] && got[1] < got[2]) {
		t.Error("not monotonic: got", got)
	}
	for _, v := range got {
		if v < 0 {
			t.Error("negative score: got", got)
		}
	}
}

func TestResultRoundTrip(t *testing.T) {
	res := &Result{
		Name:    BlobName("cifar10_1", 0.001, 0, false),
		Model:   "cifar10_1",
		Tid:     0,
		Scores:  []float32{0.1, 0.2, 0.3},
		Loss:    []float32{1, 2, 3},
		MaxProb: []float32{0.9, 0.8, 0.7},
	}
	data, err := res.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadResult(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if !stdreflect.DeepEqual(got, res) {
		t.Error("got", got, "expect", res)
	}
}

func TestBlobName(t *testing.T) {
	if name := BlobName("cifar10_37", 0.001, 2, false); name != "m_entropy_cifar10_37_0.001_tid2.sc" {
		t.Error("got", name)
	}
	if name := BlobName("mnist_1", 0.01, 0, true); name != "m_entropy_mnist_1_0.01_tid0_test.sc" {
		t.Error("got", name)
	}
}

func TestTransform(t *testing.T) {
	x := num.NewArrayData([]float32{
		1, 2,
		3, 4,
	}, 1, 1, 2, 2)
	Transform{Flip: true}.Apply(x)
	if !stdreflect.DeepEqual(x.Data(), []float32{2, 1, 4, 3}) {
		t.Error("flip: got", x.Data())
	}
	x = num.NewArrayData([]float32{
		1, 2,
		3, 4,
	}, 1, 1, 2, 2)
	Transform{ShiftX: 1}.Apply(x)
	// shift right with the leftmost column reflected
	if !stdreflect.DeepEqual(x.Data(), []float32{1, 1, 3, 3}) {
		t.Error("shift: got", x.Data())
	}
	// identity leaves the input alone
	before := append([]float32{}, x.Data()...)
	Transform{}.Apply(x)
	if !stdreflect.DeepEqual(x.Data(), before) {
		t.Error("identity: got", x.Data())
	}
}

func TestTransformRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := num.NewArray(2, 3, 8, 8)
	for i := range x.Data() {
		x.Data()[i] = rng.Float32()
	}
	// flipping twice restores the original
	before := append([]float32{}, x.Data()...)
	tr := Transform{Flip: true}
	tr.Apply(x)
	tr.Apply(x)
	if !stdreflect.DeepEqual(x.Data(), before) {
		t.Error("double flip should be the identity")
	}
}
