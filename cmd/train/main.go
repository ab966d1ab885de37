// Command train fits the LeNet-5 classifier on a prepared dataset and writes
// a checkpoint which the scoring driver can consume.
package main

import (
	"flag"
	"fmt"

	"github.com/DeepakTatachar/curvature-clues/img"
	"github.com/DeepakTatachar/curvature-clues/nnet"
)

type options struct {
	dataset string
	suffix  string
	resize  string
	config  string
	eta     float64
	lambda  float64
	mom     float64
	val     float64
	seed    int64
	epochs  int
	batch   int
	tbatch  int
	shuffle bool
	augment bool
	pad     int
	debug   int
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.dataset, "dataset", "cifar10", "dataset to use")
	flag.StringVar(&o.suffix, "suffix", "wd1", "appended to checkpoint name")
	flag.StringVar(&o.resize, "resize", "", "resize images to WxH before training")
	flag.StringVar(&o.config, "config", "", "load network config from .net file instead of the default")
	flag.Float64Var(&o.eta, "eta", 0.1, "learning rate")
	flag.Float64Var(&o.lambda, "lambda", 1e-4, "weight decay parameter")
	flag.Float64Var(&o.mom, "momentum", 0.9, "momentum")
	flag.Float64Var(&o.val, "valsplit", 0, "fraction of the train set held out for validation")
	flag.Int64Var(&o.seed, "seed", 1, "random number seed, time based if <= 0")
	flag.IntVar(&o.epochs, "epochs", 30, "max epochs")
	flag.IntVar(&o.batch, "batch", 512, "train batch size")
	flag.IntVar(&o.tbatch, "testbatch", 512, "test batch size")
	flag.BoolVar(&o.shuffle, "shuffle", true, "shuffle the training dataset")
	flag.BoolVar(&o.augment, "augment", false, "random horizontal flip and shift")
	flag.IntVar(&o.pad, "pad", 4, "max shift in pixels when augment is set")
	flag.IntVar(&o.debug, "debug", 0, "debug logging level")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	trainData, err := nnet.LoadDataFile(o.dataset + "_train")
	nnet.CheckErr(err)
	testData, err := nnet.LoadDataFile(o.dataset + "_test")
	nnet.CheckErr(err)
	if o.resize != "" {
		var w, h int
		_, err = fmt.Sscanf(o.resize, "%dx%d", &w, &h)
		nnet.CheckErr(err)
		trainData.Resample(w, h)
		testData.Resample(w, h)
	}

	conf := nnet.LeNet5(len(trainData.Classes()))
	if o.config != "" {
		conf, err = nnet.LoadConfig(o.config)
		nnet.CheckErr(err)
	}
	conf.DataSet = o.dataset
	conf.Eta = o.eta
	conf.Lambda = o.lambda
	conf.Momentum = o.mom
	conf.ValSplit = o.val
	conf.RandSeed = o.seed
	conf.MaxEpoch = o.epochs
	conf.TrainBatch = o.batch
	conf.TestBatch = o.tbatch
	conf.Shuffle = o.shuffle
	conf.Augment = o.augment
	conf.PadCrop = o.pad
	conf.DebugLevel = o.debug

	rng := nnet.SetSeed(conf.RandSeed)
	trans := img.Normalise
	if conf.Augment {
		trans |= img.HorizFlip | img.Pan
		img.PanPixels = conf.PadCrop
	}
	// with a validation split the epoch error is evaluated on held out
	// training examples instead of the test set
	trainData, validData := nnet.SplitData(trainData, conf.ValSplit)
	evalData := testData
	if validData != nil {
		evalData = validData
	}
	trainSet := nnet.NewDataset(trainData, conf.TrainBatch,
		nil, img.NewTransformer(trainData, trans, rng), false)
	testSet := nnet.NewDataset(evalData, conf.TestBatch,
		nil, img.NewTransformer(evalData, img.Normalise, rng), false)

	net := nnet.New(conf, trainData.Shape())
	fmt.Println(net)
	net.InitWeights(rng)

	nnet.Train(net, trainSet, rng, nnet.NewTestLogger(testSet))

	name := fmt.Sprintf("%s_%s%d", o.dataset, o.suffix, conf.MaxEpoch)
	ckpt := &nnet.Checkpoint{
		Model:  fmt.Sprintf("%s_lenet5_%s_%s", o.dataset, o.dataset, o.suffix),
		Epoch:  conf.MaxEpoch,
		Conf:   conf,
		Params: net.Params(),
	}
	nnet.CheckErr(nnet.SaveCheckpoint(ckpt, name))
	nnet.CheckErr(conf.Save(name + ".net"))
	fmt.Printf("saved checkpoint %s\n", name)
}
