// Package score computes per example membership difficulty diagnostics for a
// trained classifier: cross entropy loss, max softmax probability and the
// modified prediction entropy (mentr) metric.
package score

import (
	"fmt"
	"math"

	"github.com/DeepakTatachar/curvature-clues/nnet"
	"github.com/DeepakTatachar/curvature-clues/num"
)

// Epsilon guards the log terms so the metric stays finite for degenerate
// probability vectors.
const Epsilon = 1e-9

// Mentr returns the modified prediction entropy for each row of probs given
// the true class labels, as per https://arxiv.org/pdf/2003.10595.pdf:
//
//	-(1 - p_true)*log(p_true) + sum over i != true of -p_i*log(1 - p_i + eps)
func Mentr(probs *num.Array, labels []int32) []float32 {
	dims := probs.Dims()
	if len(dims) != 2 {
		panic(fmt.Sprintf("Mentr: expect 2 dimensional input, have %v", dims))
	}
	batch, classes := dims[0], dims[1]
	if len(labels) != batch {
		panic(fmt.Sprintf("Mentr: have %d labels for %d examples", len(labels), batch))
	}
	mentr := make([]float32, batch)
	for i := 0; i < batch; i++ {
		row := probs.Row(i)
		label := int(labels[i])
		pTrue := float64(row[label])
		val := -(1 - pTrue) * math.Log(pTrue+Epsilon)
		for j := 0; j < classes; j++ {
			if j == label {
				continue
			}
			p := float64(row[j])
			val -= p * math.Log(1-p+Epsilon)
		}
		mentr[i] = float32(val)
	}
	return mentr
}

// Batch holds the per example diagnostics for one forward pass.
type Batch struct {
	Loss    []float32
	MaxProb []float32
	Mentr   []float32
}

// Diagnostics runs inference on the input batch in evaluation mode and
// computes the loss, max probability and mentr score per example.
func Diagnostics(net *nnet.Network, x *num.Array, labels []int32) Batch {
	probs := net.Fprop(x, false)
	size := x.Dims()[0]
	b := Batch{
		Loss:    make([]float32, size),
		MaxProb: make([]float32, size),
	}
	num.CrossEntropy(probs, labels, b.Loss)
	num.RowMax(probs, b.MaxProb)
	b.Mentr = Mentr(probs, labels)
	return b
}
