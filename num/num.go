package num

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// TransType flag indicates if matrix is transposed
type TransType int

const (
	NoTrans TransType = iota
	Trans
)

// Fill array with a scalar value
func Fill(a *Array, scalar float32) {
	for i := range a.data {
		a.data[i] = scalar
	}
}

// Copy from src to dst, arrays must be the same size
func Copy(dst, src *Array) {
	if dst.Size() != src.Size() {
		panic(fmt.Sprintf("Copy: size mismatch %v %v", dst.dims, src.dims))
	}
	copy(dst.data, src.data)
}

// Axpy updates y with alpha*x + y
func Axpy(alpha float32, x, y *Array) {
	if x.Size() != y.Size() {
		panic(fmt.Sprintf("Axpy: size mismatch %v %v", x.dims, y.dims))
	}
	for i, v := range x.data {
		y.data[i] += alpha * v
	}
}

// Scale multiplies each element of the array by alpha
func Scale(alpha float32, a *Array) {
	for i := range a.data {
		a.data[i] *= alpha
	}
}

// Sum returns the total of all the elements
func Sum(a *Array) float32 {
	var sum float32
	for _, v := range a.data {
		sum += v
	}
	return sum
}

func general(a *Array, t TransType) (blas32.General, blas.Transpose) {
	if len(a.dims) != 2 {
		panic(fmt.Sprintf("Gemm: argument must be a matrix, have shape %v", a.dims))
	}
	g := blas32.General{Rows: a.dims[0], Cols: a.dims[1], Stride: a.dims[1], Data: a.data}
	if t == Trans {
		return g, blas.Trans
	}
	return g, blas.NoTrans
}

// Gemm calculates c = alpha * op(a) * op(b) + beta * c using 32 bit blas.
func Gemm(alpha, beta float32, a, b, c *Array, tA, tB TransType) {
	ga, transA := general(a, tA)
	gb, transB := general(b, tB)
	gc, _ := general(c, NoTrans)
	m, k := ga.Rows, ga.Cols
	if transA == blas.Trans {
		m, k = k, m
	}
	n := gb.Cols
	if transB == blas.Trans {
		n = gb.Rows
	}
	if gc.Rows != m || gc.Cols != n {
		panic(fmt.Sprintf("Gemm: output shape %v expecting [%d %d]", c.dims, m, n))
	}
	blas32.Gemm(transA, transB, alpha, ga, gb, beta, gc)
}

// Relu applies rectified linear activation to each element of x
func Relu(x, y *Array) {
	for i, v := range x.data {
		if v > 0 {
			y.data[i] = v
		} else {
			y.data[i] = 0
		}
	}
}

// ReluD calcuates the gradient at the input given the input values and the gradient at the output
func ReluD(x, grad, out *Array) {
	for i, v := range x.data {
		if v > 0 {
			out.data[i] = grad.data[i]
		} else {
			out.data[i] = 0
		}
	}
}

// Softmax applies the softmax function to each row of x, output values sum to 1 per row
func Softmax(x, y *Array) {
	rows, cols := x.dims[0], Prod(x.dims[1:])
	for i := 0; i < rows; i++ {
		src, dst := x.data[i*cols:(i+1)*cols], y.data[i*cols:(i+1)*cols]
		max := src[0]
		for _, v := range src[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		for j, v := range src {
			dst[j] = float32(math.Exp(float64(v - max)))
			sum += dst[j]
		}
		for j := range dst {
			dst[j] /= sum
		}
	}
}

// CrossEntropy sets loss[i] to -log(probs[i][labels[i]]) for each row of probs.
func CrossEntropy(probs *Array, labels []int32, loss []float32) {
	rows, cols := probs.dims[0], Prod(probs.dims[1:])
	if len(labels) != rows || len(loss) != rows {
		panic(fmt.Sprintf("CrossEntropy: have %d labels and %d outputs for %d rows", len(labels), len(loss), rows))
	}
	for i := 0; i < rows; i++ {
		p := probs.data[i*cols+int(labels[i])]
		loss[i] = -float32(math.Log(float64(p) + 1e-20))
	}
}

// Onehot expands the labels to one hot encoded rows of the output matrix.
func Onehot(labels []int32, y *Array) {
	rows, cols := y.dims[0], y.dims[1]
	if len(labels) != rows {
		panic(fmt.Sprintf("Onehot: have %d labels for %d rows", len(labels), rows))
	}
	Fill(y, 0)
	for i, label := range labels {
		y.data[i*cols+int(label)] = 1
	}
}

// Unhot sets classes[i] to the index of the maximum value in each row.
func Unhot(y *Array, classes []int32) {
	rows, cols := y.dims[0], Prod(y.dims[1:])
	for i := 0; i < rows; i++ {
		row := y.data[i*cols : (i+1)*cols]
		ix := 0
		for j, v := range row {
			if v > row[ix] {
				ix = j
			}
		}
		classes[i] = int32(ix)
	}
}

// RowMax sets out[i] to the maximum value in row i.
func RowMax(a *Array, out []float32) {
	rows, cols := a.dims[0], Prod(a.dims[1:])
	for i := 0; i < rows; i++ {
		row := a.data[i*cols : (i+1)*cols]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		out[i] = max
	}
}

// GroupMeanVar calculates the mean and biased variance per group where the
// array is treated as shape (batch, groups, size). For a 2 dimensional array
// each column is a group with size 1, for a 4 dimensional image tensor each
// channel is a group with size h*w.
func GroupMeanVar(a *Array, groups, size int, mean, vari []float32) {
	batch := len(a.data) / (groups * size)
	if batch*groups*size != len(a.data) {
		panic(fmt.Sprintf("GroupMeanVar: shape %v does not divide into %d groups of %d", a.dims, groups, size))
	}
	if len(mean) != groups || len(vari) != groups {
		panic(fmt.Sprintf("GroupMeanVar: have %d outputs for %d groups", len(mean), groups))
	}
	n := float32(batch * size)
	for g := 0; g < groups; g++ {
		var sum float32
		for b := 0; b < batch; b++ {
			base := (b*groups + g) * size
			for i := 0; i < size; i++ {
				sum += a.data[base+i]
			}
		}
		m := sum / n
		var sq float32
		for b := 0; b < batch; b++ {
			base := (b*groups + g) * size
			for i := 0; i < size; i++ {
				d := a.data[base+i] - m
				sq += d * d
			}
		}
		mean[g] = m
		vari[g] = sq / n
	}
}

// Sigmoid applies the logistic function to each element of x
func Sigmoid(x, y *Array) {
	for i, v := range x.data {
		y.data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
}

// SigmoidD calcuates the gradient at the input given the output values and the gradient at the output
func SigmoidD(y, grad, out *Array) {
	for i, v := range y.data {
		out.data[i] = grad.data[i] * v * (1 - v)
	}
}

// Tanh applies the hyperbolic tangent to each element of x
func Tanh(x, y *Array) {
	for i, v := range x.data {
		y.data[i] = float32(math.Tanh(float64(v)))
	}
}

// TanhD calcuates the gradient at the input given the output values and the gradient at the output
func TanhD(y, grad, out *Array) {
	for i, v := range y.data {
		out.data[i] = grad.data[i] * (1 - v*v)
	}
}
