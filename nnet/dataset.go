package nnet

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path"
	"sync"

	"github.com/DeepakTatachar/curvature-clues/img"
	"github.com/DeepakTatachar/curvature-clues/num"
)

// Dataset type wraps an image set with batch iteration, the canonical index
// mapping and optional input transformations. Batches are prefetched in the
// background into a pair of buffers.
type Dataset struct {
	*img.Data
	Samples   int
	BatchSize int
	Batches   int
	index     []int32
	order     []int
	trans     *img.Transformer
	flatten   bool
	xBuffer   [2][]float32
	yBuffer   [2][]int32
	ixBuffer  [2][]int32
	size      [2]int
	buf       int
	batch     int
	sync.WaitGroup
}

// Create a new Dataset with the given batch size. index maps each loader
// position to the canonical dataset example it holds: if nil the identity
// mapping is used. Panics if the index length does not match the data.
func NewDataset(data *img.Data, batchSize int, index []int32, trans *img.Transformer, flatten bool) *Dataset {
	d := &Dataset{Data: data, Samples: data.Len(), trans: trans, flatten: flatten}
	if index == nil {
		index = make([]int32, d.Samples)
		for i := range index {
			index[i] = int32(i)
		}
	}
	if len(index) != d.Samples {
		panic(fmt.Sprintf("NewDataset: index length %d does not match %d examples", len(index), d.Samples))
	}
	d.index = index
	if batchSize == 0 || batchSize > d.Samples {
		d.BatchSize = d.Samples
	} else {
		d.BatchSize = batchSize
	}
	d.Batches = d.Samples / d.BatchSize
	if d.Samples%d.BatchSize != 0 {
		d.Batches++
	}
	nfeat := num.Prod(data.Shape())
	for i := range d.xBuffer {
		d.xBuffer[i] = make([]float32, nfeat*d.BatchSize)
		d.yBuffer[i] = make([]int32, d.BatchSize)
		d.ixBuffer[i] = make([]int32, d.BatchSize)
	}
	d.order = make([]int, d.Samples)
	for i := range d.order {
		d.order[i] = i
	}
	d.loadBatch()
	return d
}

// Index returns the canonical index mapping.
func (d *Dataset) Index() []int32 { return d.index }

// kick off load of next batch of data in background
func (d *Dataset) loadBatch() {
	d.Add(1)
	go func() {
		start := d.batch * d.BatchSize
		end := start + d.BatchSize
		if end > d.Samples {
			end = d.Samples
		}
		ids := d.ixBuffer[d.buf][:end-start]
		for i, pos := range d.order[start:end] {
			ids[i] = d.index[pos]
		}
		d.Data.Input(ids, d.xBuffer[d.buf], d.trans)
		d.Data.Label(ids, d.yBuffer[d.buf])
		d.size[d.buf] = end - start
		d.Done()
	}()
}

// Get next batch of data. x has the batch as the leading dimension, y holds
// the labels and ix the canonical example index for each position.
func (d *Dataset) NextBatch() (x *num.Array, y []int32, ix []int32) {
	d.Wait()
	size := d.size[d.buf]
	nfeat := num.Prod(d.Shape())
	if d.flatten {
		x = num.NewArrayData(d.xBuffer[d.buf][:size*nfeat], size, nfeat)
	} else {
		x = num.NewArrayData(d.xBuffer[d.buf][:size*nfeat], append([]int{size}, d.Shape()...)...)
	}
	y = d.yBuffer[d.buf][:size]
	ix = d.ixBuffer[d.buf][:size]
	d.batch = (d.batch + 1) % d.Batches
	d.buf = (d.buf + 1) % 2
	d.loadBatch()
	return x, y, ix
}

// Rewind to start of data
func (d *Dataset) Rewind() {
	d.Wait()
	d.batch = 0
	d.loadBatch()
}

// Shuffle the iteration order
func (d *Dataset) Shuffle(rng *rand.Rand) {
	d.Wait()
	d.order = rng.Perm(d.Samples)
	d.batch = 0
	d.loadBatch()
}

// SplitData holds out the last valSplit fraction of the examples as a
// validation set. valid is nil if the split is empty.
func SplitData(d *img.Data, valSplit float64) (train, valid *img.Data) {
	n := d.Len() - int(float64(d.Len())*valSplit)
	if n <= 0 || n >= d.Len() {
		return d, nil
	}
	return d.Slice(0, n), d.Slice(n, d.Len())
}

// Decode image data from gob file under DataDir
func LoadDataFile(name string) (*img.Data, error) {
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fmt.Printf("loading data from %s.dat:\t", name)
	d := new(img.Data)
	if err = d.Decode(f); err != nil {
		return nil, err
	}
	fmt.Println(append(d.Shape(), d.Len()))
	return d, nil
}

// Encode in gob format and save to file under DataDir
func SaveDataFile(d *img.Data, name string) error {
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Println("saving data to", name+".dat")
	return d.Encode(f)
}

// Load the canonical index mapping from gob file under DataDir
func LoadIndexFile(name string) ([]int32, error) {
	filePath := path.Join(DataDir, name+".idx")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var index []int32
	if err = gob.NewDecoder(f).Decode(&index); err != nil {
		return nil, err
	}
	fmt.Printf("loaded index %s.idx with %d entries\n", name, len(index))
	return index, nil
}

// Save the canonical index mapping to gob file under DataDir
func SaveIndexFile(index []int32, name string) error {
	filePath := path.Join(DataDir, name+".idx")
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Printf("saving index to %s.idx with %d entries\n", name, len(index))
	return gob.NewEncoder(f).Encode(index)
}

// Check if file exists under DataDir
func FileExists(name string) bool {
	filePath := path.Join(DataDir, name)
	_, err := os.Stat(filePath)
	return err == nil
}
