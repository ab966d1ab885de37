package num

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func TestArray(t *testing.T) {
	xd := []float32{1, 1, 2, 2, 3, 3}
	x := NewArrayData(xd, 6)
	x = x.Reshape(2, 3)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{2, 3}) {
		t.Error("dims invalid: got", dim)
	}
	x = x.Reshape(3, -1)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{3, 2}) {
		t.Error("dims invalid: got", dim)
	}
	if row := x.Row(1); !reflect.DeepEqual(row, []float32{2, 2}) {
		t.Error("row invalid: got", row)
	}
	v := x.Index(2)
	if !reflect.DeepEqual(v.Data(), []float32{3, 3}) {
		t.Error("index invalid: got", v.Data())
	}
	v.Data()[0] = 9
	if x.Data()[4] != 9 {
		t.Error("index should be a view into the source array")
	}
}

func TestGemm(t *testing.T) {
	a := NewArrayData([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := NewArrayData([]float32{7, 8, 9, 10, 11, 12}, 3, 2)
	c := NewArray(2, 2)
	Gemm(1, 0, a, b, c, NoTrans, NoTrans)
	expect := []float32{58, 64, 139, 154}
	if !reflect.DeepEqual(c.Data(), expect) {
		t.Error("got", c.Data(), "expect", expect)
	}
	// same product via transposed inputs
	at := NewArrayData([]float32{1, 4, 2, 5, 3, 6}, 3, 2)
	Gemm(1, 0, at, b, c, Trans, NoTrans)
	if !reflect.DeepEqual(c.Data(), expect) {
		t.Error("transA: got", c.Data(), "expect", expect)
	}
	bt := NewArrayData([]float32{7, 9, 11, 8, 10, 12}, 2, 3)
	Gemm(1, 0, a, bt, c, NoTrans, Trans)
	if !reflect.DeepEqual(c.Data(), expect) {
		t.Error("transB: got", c.Data(), "expect", expect)
	}
}

func TestSoftmax(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 1000, 1000, 1000}, 2, 3)
	y := NewArrayLike(x)
	Softmax(x, y)
	for i := 0; i < 2; i++ {
		var sum float32
		for _, v := range y.Row(i) {
			sum += v
		}
		if math.Abs(float64(sum)-1) > 1e-6 {
			t.Error("row", i, "sums to", sum)
		}
	}
	row := y.Row(0)
	if !(row[0] < row[1] && row[1] < row[2]) {
		t.Error("ordering not preserved: got", row)
	}
	// large inputs should not overflow
	for _, v := range y.Row(1) {
		if math.Abs(float64(v)-1.0/3) > 1e-6 {
			t.Error("overflow: got", y.Row(1))
		}
	}
}

func TestCrossEntropy(t *testing.T) {
	probs := NewArrayData([]float32{0.5, 0.25, 0.25, 0.1, 0.8, 0.1}, 2, 3)
	loss := make([]float32, 2)
	CrossEntropy(probs, []int32{0, 1}, loss)
	expect := []float32{float32(-math.Log(0.5)), float32(-math.Log(0.8))}
	for i := range loss {
		if math.Abs(float64(loss[i]-expect[i])) > 1e-6 {
			t.Error("got", loss, "expect", expect)
		}
	}
	// zero probability gives a large but finite loss
	probs = NewArrayData([]float32{0, 1}, 1, 2)
	CrossEntropy(probs, []int32{0}, loss[:1])
	if math.IsInf(float64(loss[0]), 0) || math.IsNaN(float64(loss[0])) {
		t.Error("loss not finite: got", loss[0])
	}
}

func TestOnehot(t *testing.T) {
	y := NewArray(4, 3)
	Onehot([]int32{2, 1, 0, 2}, y)
	expect := []float32{0, 0, 1, 0, 1, 0, 1, 0, 0, 0, 0, 1}
	if !reflect.DeepEqual(y.Data(), expect) {
		t.Error("got", y.Data(), "expect", expect)
	}
	classes := make([]int32, 4)
	Unhot(y, classes)
	if !reflect.DeepEqual(classes, []int32{2, 1, 0, 2}) {
		t.Error("unhot: got", classes)
	}
}

func TestGroupMeanVar(t *testing.T) {
	// 2 batch x 3 cols
	a := NewArrayData([]float32{1, 2, 3, 3, 4, 5}, 2, 3)
	mean := make([]float32, 3)
	vari := make([]float32, 3)
	GroupMeanVar(a, 3, 1, mean, vari)
	if !reflect.DeepEqual(mean, []float32{2, 3, 4}) {
		t.Error("mean: got", mean)
	}
	if !reflect.DeepEqual(vari, []float32{1, 1, 1}) {
		t.Error("var: got", vari)
	}
	// 1 batch x 2 channels x 2x2 image
	img := NewArrayData([]float32{1, 1, 3, 3, 0, 2, 4, 6}, 1, 2, 2, 2)
	mean = make([]float32, 2)
	vari = make([]float32, 2)
	GroupMeanVar(img, 2, 4, mean, vari)
	if !reflect.DeepEqual(mean, []float32{2, 3}) {
		t.Error("mean: got", mean)
	}
	if !reflect.DeepEqual(vari, []float32{1, 5}) {
		t.Error("var: got", vari)
	}
}

func TestIm2col(t *testing.T) {
	src := NewArrayData([]float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, 1, 3, 3)
	col := NewArray(4, 4)
	Im2col(src, 2, 1, 0, col)
	expect := []float32{
		1, 2, 4, 5,
		2, 3, 5, 6,
		4, 5, 7, 8,
		5, 6, 8, 9,
	}
	if !reflect.DeepEqual(col.Data(), expect) {
		t.Error("got", col.Data(), "expect", expect)
	}
}

func TestIm2colPad(t *testing.T) {
	src := NewArrayData([]float32{1, 2, 3, 4}, 1, 2, 2)
	oh := ConvOut(2, 3, 1, 1)
	if oh != 2 {
		t.Fatal("ConvOut: got", oh)
	}
	col := NewArray(9, 4)
	Im2col(src, 3, 1, 1, col)
	// center tap of the 3x3 kernel sees the unpadded image
	if !reflect.DeepEqual(col.Row(4), []float32{1, 2, 3, 4}) {
		t.Error("center tap: got", col.Row(4))
	}
	// top left tap only sees padding
	if !reflect.DeepEqual(col.Row(0), []float32{0, 0, 0, 1}) {
		t.Error("first tap: got", col.Row(0))
	}
}

func TestCol2im(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	src := NewArray(2, 4, 4)
	for i := range src.Data() {
		src.Data()[i] = rng.Float32()
	}
	col := NewArray(2*3*3, 4)
	Im2col(src, 3, 1, 0, col)
	dst := NewArray(2, 4, 4)
	Col2im(col, 2, 4, 4, 3, 1, 0, dst)
	// every input position is summed once per receptive field it appears in,
	// the center positions of a 4x4 image appear in all four 3x3 fields
	if got, want := dst.Data()[5], 4*src.Data()[5]; math.Abs(float64(got-want)) > 1e-5 {
		t.Error("got", got, "expect", want)
	}
	if got, want := dst.Data()[0], src.Data()[0]; math.Abs(float64(got-want)) > 1e-5 {
		t.Error("corner: got", got, "expect", want)
	}
}

func TestPooling(t *testing.T) {
	src := NewArrayData([]float32{
		1, 2, 5, 6,
		3, 4, 7, 8,
		4, 3, 2, 1,
		2, 1, 4, 3,
	}, 1, 4, 4)
	dst := NewArray(1, 2, 2)
	AvgPool(src, dst, 2, 2)
	if !reflect.DeepEqual(dst.Data(), []float32{2.5, 6.5, 2.5, 2.5}) {
		t.Error("avg: got", dst.Data())
	}
	mask := make([]int, 4)
	MaxPool(src, dst, 2, 2, mask)
	if !reflect.DeepEqual(dst.Data(), []float32{4, 8, 4, 4}) {
		t.Error("max: got", dst.Data())
	}
	if !reflect.DeepEqual(mask, []int{5, 7, 8, 14}) {
		t.Error("mask: got", mask)
	}
	grad := NewArrayData([]float32{1, 1, 1, 1}, 1, 2, 2)
	back := NewArray(1, 4, 4)
	MaxPoolGrad(grad, back, mask)
	if s := Sum(back); s != 4 {
		t.Error("max grad sum: got", s)
	}
	AvgPoolGrad(grad, back, 2, 2)
	if s := Sum(back); math.Abs(float64(s)-4) > 1e-6 {
		t.Error("avg grad sum: got", s)
	}
}
