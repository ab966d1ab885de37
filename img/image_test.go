package img

import (
	"bytes"
	"image/color"
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func TestImage(t *testing.T) {
	m := NewGray(3, 2)
	if !reflect.DeepEqual(m.Shape(), []int{1, 2, 3}) {
		t.Error("shape: got", m.Shape())
	}
	m.Set(1, 0, color.Gray{Y: 255})
	if m.Pix[1] != 1 {
		t.Error("set: got", m.Pix)
	}
	c := NewRGB(2, 2)
	c.Set(0, 1, color.NRGBA{R: 255, G: 0, B: 127, A: 255})
	if c.Pixels(0)[2] != 1 || c.Pixels(1)[2] != 0 {
		t.Error("rgb planes: got", c.Pix)
	}
	r, g, b, _ := c.At(0, 1).RGBA()
	if r != 0xffff || g != 0 || b>>8 != 127 {
		t.Error("at: got", r, g, b)
	}
}

func TestFlipShift(t *testing.T) {
	m := NewGray(3, 1)
	copy(m.Pix, []float32{1, 2, 3})
	f := FlipH(m)
	if !reflect.DeepEqual(f.Pix, []float32{3, 2, 1}) {
		t.Error("flip: got", f.Pix)
	}
	s := Shift(m, 1, 0)
	// shift right, leftmost pixel reflected at the edge
	if !reflect.DeepEqual(s.Pix, []float32{1, 1, 2}) {
		t.Error("shift: got", s.Pix)
	}
}

func TestNormalise(t *testing.T) {
	images := []*Image{NewGray(2, 2), NewGray(2, 2)}
	copy(images[0].Pix, []float32{0, 0, 1, 1})
	copy(images[1].Pix, []float32{1, 1, 0, 0})
	d := NewData([]string{"a", "b"}, []int32{0, 1}, images)
	d.Mean, d.StdDev = GetStats(images)
	if d.Mean[0] != 0.5 {
		t.Error("mean: got", d.Mean)
	}
	rng := rand.New(rand.NewSource(1))
	trans := NewTransformer(d, Normalise, rng)
	out, err := trans.Transform(images[0], 0)
	if err != nil {
		t.Fatal(err)
	}
	var sum float32
	for _, v := range out.Pix {
		sum += v
	}
	if math.Abs(float64(sum)) > 1e-6 {
		t.Error("normalised sum: got", sum)
	}
}

func TestResample(t *testing.T) {
	m := NewGray(8, 8)
	for i := range m.Pix {
		m.Pix[i] = 0.5
	}
	r := Resample(m, 4, 4)
	if !reflect.DeepEqual(r.Shape(), []int{1, 4, 4}) {
		t.Error("shape: got", r.Shape())
	}
	for _, v := range r.Pix {
		if math.Abs(float64(v)-0.5) > 0.02 {
			t.Error("uniform image should stay uniform: got", v)
			break
		}
	}
	if same := Resample(m, 8, 8); same != m {
		t.Error("resample to the same size should be a noop")
	}
}

func TestDataEncode(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	images := make([]*Image, 4)
	labels := make([]int32, 4)
	for i := range images {
		images[i] = NewGray(4, 4)
		for j := range images[i].Pix {
			images[i].Pix[j] = rng.Float32()
		}
		labels[i] = int32(i % 2)
	}
	d := NewData([]string{"a", "b"}, labels, images)
	d.Mean, d.StdDev = GetStats(images)
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	d2 := new(Data)
	if err := d2.Decode(&buf); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d2.DataHead, d.DataHead) {
		t.Error("header mismatch")
	}
	for i := range images {
		if !reflect.DeepEqual(d2.Images[i], images[i]) {
			t.Error("image", i, "mismatch")
		}
	}
}

func TestTransformBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	images := make([]*Image, 6)
	labels := make([]int32, 6)
	for i := range images {
		images[i] = NewGray(4, 4)
		for j := range images[i].Pix {
			images[i].Pix[j] = rng.Float32()
		}
	}
	d := NewData([]string{"a"}, labels, images)
	d.Mean, d.StdDev = GetStats(images)
	trans := NewTransformer(d, HorizFlip|Pan|Normalise, rng)
	index := []int32{0, 1, 2, 3, 4, 5}
	out := trans.TransformBatch(index, nil)
	if len(out) != 6 {
		t.Fatal("got", len(out), "images")
	}
	for i, m := range out {
		if m == nil || len(m.Pix) != 16 {
			t.Error("image", i, "not transformed")
		}
	}
}
