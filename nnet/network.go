// Package nnet contains routines for constructing, training and evaluating neural networks.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/DeepakTatachar/curvature-clues/num"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Config
	Layers  []Layer
	inShape []int
	outRef  int
}

// New function creates a new network with the layers from the config.
// inShape is the shape of one example: channels, height, width.
func New(conf Config, inShape []int) *Network {
	n := &Network{Config: conf, inShape: append([]int{}, inShape...)}
	shape := append([]int{1}, inShape...)
	if conf.FlattenInput {
		shape = []int{1, num.Prod(inShape)}
	}
	n.outRef = -1
	for i, l := range conf.Layers {
		layer := l.Unmarshal().Init(shape)
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
		if _, ok := layer.(ParamLayer); ok {
			n.outRef = i
		}
	}
	return n
}

// InShape returns the shape of one input example.
func (n *Network) InShape() []int { return n.inShape }

// Initialise network weights using a uniform or normal distribution.
// Weights for each layer are scaled by 1/sqrt(nin)
func (n *Network) InitWeights(rng *rand.Rand) {
	shape := append([]int{1}, n.inShape...)
	if n.FlattenInput {
		shape = []int{1, num.Prod(n.inShape)}
	}
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			nin := num.Prod(shape[1:])
			scale := float32(1 / math.Sqrt(float64(nin)))
			l.InitParams(scale, n.NormalWeights, rng)
		}
		shape = layer.OutShape(shape)
	}
}

// Feed forward the input to get the predicted output. If train is set then
// batch normalisation layers use batch statistics and save state for backprop.
func (n *Network) Fprop(input *num.Array, train bool) *num.Array {
	pred := input
	for i, layer := range n.Layers {
		if n.DebugLevel >= 2 && pred != nil {
			fmt.Printf("layer %d input\n%s\n", i, pred)
		}
		pred = layer.Fprop(pred, train)
	}
	return pred
}

// FpropLatent runs the forward pass returning both the output and the latent
// feature vector which is fed to the final classification layer.
func (n *Network) FpropLatent(input *num.Array) (pred, latent *num.Array) {
	if n.outRef < 0 {
		panic("FpropLatent: network has no classification layer")
	}
	pred = input
	for i, layer := range n.Layers {
		if i == n.outRef {
			latent = pred
		}
		pred = layer.Fprop(pred, false)
	}
	return pred, latent
}

// Predict output class for each example given the input data
func (n *Network) Predict(input *num.Array, classes []int32) *num.Array {
	yPred := n.Fprop(input, false)
	num.Unhot(yPred, classes)
	return yPred
}

// Accuracy runs inference over the dataset in evaluation mode and counts the
// correctly classified examples.
func (n *Network) Accuracy(dset *Dataset) (correct, total int, pct float64) {
	classes := make([]int32, dset.BatchSize)
	dset.Rewind()
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, _ := dset.NextBatch()
		size := x.Dims()[0]
		n.Predict(x, classes[:size])
		for i, label := range y {
			if classes[i] == label {
				correct++
			}
		}
		total += size
	}
	if total > 0 {
		pct = 100 * float64(correct) / float64(total)
	}
	return correct, total, pct
}

// OutLayer returns the final layer in the stack
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := append([]int{1}, n.inShape...)
	if n.FlattenInput {
		shape = []int{1, num.Prod(n.inShape)}
	}
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %-25s %v", i, layer.ToString(), shape[1:])
		shape = layer.OutShape(shape)
	}
	return fmt.Sprintf("%s\n== Network ==\n%s", n.Config, strings.Join(s, "\n"))
}

// Set random number seed, or a time based seed if seed <= 0.
// Returns a new generator: callers should not rely on the global rand state.
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	fmt.Println("random seed =", seed)
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
