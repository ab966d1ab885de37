package nnet

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/DeepakTatachar/curvature-clues/num"
	"github.com/DeepakTatachar/curvature-clues/stats"
)

// Training statistics for one epoch
type Stats struct {
	Epoch     int
	Loss      float64
	TestError float64
	Elapsed   time.Duration
}

// Tester interface evaluates performance after each epoch, Test returns true if training should stop.
type Tester interface {
	Test(net *Network, epoch int, loss float64, start time.Time) bool
}

// Tester which evaluates the test set error and logs stats to stdout.
type TestLogger struct {
	Data   *Dataset
	Stats  []Stats
	smooth stats.EMA
}

func NewTestLogger(data *Dataset) *TestLogger {
	return &TestLogger{Data: data}
}

func (t *TestLogger) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	_, _, pct := net.Accuracy(t.Data)
	t.smooth = stats.EMA(t.smooth.Add(loss, 5))
	s := Stats{Epoch: epoch, Loss: loss, TestError: 100 - pct, Elapsed: time.Since(start)}
	t.Stats = append(t.Stats, s)
	fmt.Printf("epoch %3d:  loss =%7.4f  avg =%7.4f  test error =%6.2f%%\n",
		epoch, s.Loss, float64(t.smooth), s.TestError)
	done := epoch >= net.MaxEpoch
	if done {
		fmt.Printf("run time: %s\n", s.Elapsed.Round(10*time.Millisecond))
	}
	return done
}

// Train the network on the given training set by updating the weights
func Train(net *Network, dset *Dataset, rng *rand.Rand, test Tester) {
	done := false
	start := time.Now()
	for epoch := 1; epoch <= net.MaxEpoch && !done; epoch++ {
		loss := TrainEpoch(net, dset, rng)
		done = test.Test(net, epoch, loss, start)
	}
}

// Perform one training epoch on the dataset, returns the average loss per example.
func TrainEpoch(net *Network, dset *Dataset, rng *rand.Rand) float64 {
	if net.Shuffle {
		dset.Shuffle(rng)
	} else {
		dset.Rewind()
	}
	losses := make([]float32, dset.BatchSize)
	var grad, yOneHot *num.Array
	var total float64
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, _ := dset.NextBatch()
		size := x.Dims()[0]
		yPred := net.Fprop(x, true)
		net.OutLayer().Loss(y, losses[:size])
		for _, l := range losses[:size] {
			total += float64(l)
		}
		// gradient at the output is yPred - yOneHot
		if grad == nil || grad.Dims()[0] != size {
			grad = num.NewArray(size, yPred.Dims()[1])
			yOneHot = num.NewArray(size, yPred.Dims()[1])
		}
		num.Onehot(y, yOneHot)
		num.Copy(grad, yPred)
		num.Axpy(-1, yOneHot, grad)
		g := grad
		for i := len(net.Layers) - 1; i >= 0; i-- {
			g = net.Layers[i].Bprop(g)
		}
		for _, layer := range net.Layers {
			if l, ok := layer.(ParamLayer); ok {
				l.UpdateParams(float32(net.Eta), float32(net.Lambda), float32(net.Momentum), size)
			}
		}
		if net.DebugLevel >= 1 && batch == 0 {
			fmt.Printf("== train batch %d ==\nloss =%7.4f\n", batch, losses[0])
		}
	}
	return total / float64(dset.Samples)
}
