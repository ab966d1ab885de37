// Command score computes the modified prediction entropy (mentr) score for
// every example in a dataset using a pretrained classifier and uploads the
// completed score array to blob storage.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/DeepakTatachar/curvature-clues/blob"
	"github.com/DeepakTatachar/curvature-clues/img"
	"github.com/DeepakTatachar/curvature-clues/nnet"
	"github.com/DeepakTatachar/curvature-clues/score"
	"github.com/joho/godotenv"
)

const (
	scoresContainer = "curvature-mi-scores"
	modelsContainer = "curvature-mi-models"
)

type options struct {
	dataset   string
	test      bool
	batch     int
	testBatch int
	augment   bool
	pad       int
	shuffle   bool
	seed      int64
	epoch     int
	suffix    string
	exp       int
	model     string
	fromBlob  bool
	upload    bool
	h         float64
	resize    string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.dataset, "dataset", "cifar10", "dataset to use")
	flag.BoolVar(&o.test, "test", false, "score the test set instead of the training set")
	flag.IntVar(&o.batch, "batch", 512, "train batch size")
	flag.IntVar(&o.testBatch, "testbatch", 512, "test batch size")
	flag.BoolVar(&o.augment, "augment", false, "random horizontal flip and shift")
	flag.IntVar(&o.pad, "pad", 4, "max shift in pixels when augment is set")
	flag.BoolVar(&o.shuffle, "shuffle", false, "shuffle the training dataset")
	flag.Int64Var(&o.seed, "seed", 1, "random number seed, <= 0 for a time based seed")
	flag.IntVar(&o.epoch, "epoch", 30, "checkpoint epoch to load")
	flag.StringVar(&o.suffix, "suffix", "wd1", "appended to model name")
	flag.IntVar(&o.exp, "exp", 37, "model experiment index")
	flag.StringVar(&o.model, "model", "", "blob name of pretrained model")
	flag.BoolVar(&o.fromBlob, "fromblob", false, "load pretrained model from blob storage")
	flag.BoolVar(&o.upload, "upload", true, "upload score arrays to blob storage")
	flag.Float64Var(&o.h, "h", 0.001, "h parameter used in score file naming")
	flag.StringVar(&o.resize, "resize", "", "resize images to WxH before scoring")
	// accepted for run naming compatibility, unused at inference time
	flag.Float64("eta", 0.1, "learning rate")
	flag.Float64("momentum", 0.9, "momentum")
	flag.Float64("wd", 1e-4, "weight decay")
	flag.Parse()
	return o
}

func newLogger(model string) *log.Logger {
	if err := os.MkdirAll("./logs", 0755); err != nil {
		nnet.CheckErr(err)
	}
	name := path.Join("./logs", fmt.Sprintf("score_%s.log", model))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	nnet.CheckErr(err)
	return log.New(io.MultiWriter(os.Stdout, f), "", log.LstdFlags)
}

func loadCheckpoint(ctx context.Context, store *blob.Store, o options, model string) *nnet.Checkpoint {
	if o.fromBlob {
		name := o.model
		if name == "" {
			name = model + ".ckpt"
		}
		data, err := store.Download(ctx, modelsContainer, name)
		nnet.CheckErr(err)
		ckpt, err := nnet.ReadCheckpoint(bytes.NewReader(data))
		nnet.CheckErr(err)
		return ckpt
	}
	ckpt, err := nnet.LoadCheckpoint(fmt.Sprintf("%s_%s%d", o.dataset, o.suffix, o.epoch))
	nnet.CheckErr(err)
	return ckpt
}

func main() {
	godotenv.Load()
	o := parseFlags()
	arch := "lenet5_" + o.dataset

	var model string
	if o.fromBlob {
		model = fmt.Sprintf("%s_%d", o.dataset, o.exp)
	} else {
		model = fmt.Sprintf("%s_%s_%s", o.dataset, arch, o.suffix)
	}
	logger := newLogger(model)

	// reproducibility settings
	rng := nnet.SetSeed(o.seed)
	if o.seed > 0 {
		os.Setenv("CURV_THREADS", "1")
	}

	index, err := nnet.LoadIndexFile("data_index_" + o.dataset)
	nnet.CheckErr(err)

	var store *blob.Store
	if o.fromBlob || o.upload {
		store, err = blob.NewStore()
		nnet.CheckErr(err)
	}

	ctx := context.Background()
	ckpt := loadCheckpoint(ctx, store, o, model)
	logger.Printf("loaded checkpoint %s epoch %d", ckpt.Model, ckpt.Epoch)

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
	if len(index) != trainData.Len() && !o.test {
		nnet.CheckErr(fmt.Errorf("index length %d does not match %d train examples", len(index), trainData.Len()))
	}

	conf := ckpt.Conf
	if len(conf.Layers) == 0 {
		conf = nnet.LeNet5(len(trainData.Classes()))
	}
	net := nnet.New(conf, trainData.Shape())
	nnet.CheckErr(net.SetParams(ckpt.Params))
	fmt.Println(net)

	trans := img.NoTrans
	if o.augment {
		trans = img.HorizFlip | img.Pan
		img.PanPixels = o.pad
	}
	testSet := nnet.NewDataset(testData, o.testBatch,
		nil, img.NewTransformer(testData, img.Normalise, rng), false)

	correct, total, pct := net.Accuracy(testSet)
	logger.Printf("Test set: Accuracy: %d/%d (%.2f%%)", correct, total, pct)

	var data = trainData
	var scoreIndex = index
	batch := o.batch
	if o.test {
		data, scoreIndex, batch = testData, nil, o.testBatch
	}
	dset := nnet.NewDataset(data, batch, scoreIndex,
		img.NewTransformer(data, trans|img.Normalise, rng), false)
	if o.shuffle && !o.test {
		dset.Shuffle(rng)
	}

	uploadStore := store
	if !o.upload {
		uploadStore = nil
	}
	runner := &score.Runner{
		Net:          net,
		Data:         dset,
		Store:        uploadStore,
		Log:          logger,
		Model:        model,
		Arch:         arch,
		H:            o.h,
		Test:         o.test,
		Container:    scoresContainer,
		ContainerDir: o.dataset,
		Transforms:   []score.Transform{{}},
		Progress: func(batch, batches int) {
			fmt.Printf("\rscoring batch %d/%d  ", batch, batches)
		},
	}
	results, err := runner.Run(ctx)
	nnet.CheckErr(err)
	fmt.Println()
	for _, res := range results {
		logger.Printf("saved %s with %d scores", res.Name, len(res.Scores))
	}
}
