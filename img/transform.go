package img

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Types of image transformations
type TransType int

const NoTrans TransType = 0

const (
	HorizFlip TransType = 1 << iota
	Pan
	Normalise
)

var transTypeNames = map[TransType]string{
	HorizFlip: "HorizFlip",
	Pan:       "Pan",
	Normalise: "Normalise",
}

func (t TransType) String() string {
	if t == NoTrans {
		return "None"
	}
	s := []string{}
	for key, name := range transTypeNames {
		if t&key != 0 {
			s = append(s, name)
		}
	}
	sort.Strings(s)
	return strings.Join(s, " ")
}

// PanPixels is the maximum random shift in pixels when the Pan transform is enabled.
var PanPixels = 4

type Transformer struct {
	Trans TransType
	data  *Data
	w, h  int
	rng   []*rand.Rand
}

// Create a new transformer object which applies a sequence of image transformations.
// The worker pool width is CURV_THREADS if set, else GOMAXPROCS.
func NewTransformer(data *Data, trans TransType, rng *rand.Rand) *Transformer {
	threads := runtime.GOMAXPROCS(0)
	if env := os.Getenv("CURV_THREADS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			threads = n
		}
	}
	b := data.Images[0].Bounds()
	t := &Transformer{Trans: trans, data: data, w: b.Dx(), h: b.Dy()}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	}
	for i := 0; i < threads; i++ {
		t.rng = append(t.rng, rand.New(rand.NewSource(rng.Int63())))
	}
	return t
}

// Transform a batch of images in parallel
func (t *Transformer) TransformBatch(index []int32, dst []*Image) []*Image {
	if dst == nil {
		dst = make([]*Image, len(index))
	}
	var wg sync.WaitGroup
	queue := make(chan int, len(t.rng))
	for thread := range t.rng {
		wg.Add(1)
		go func(thread int) {
			var err error
			for i := range queue {
				dst[i], err = t.Transform(t.data.Images[index[i]], thread)
				if err != nil {
					panic(err)
				}
			}
			wg.Done()
		}(thread)
	}
	for i := range index {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return dst
}

// Perform one or more image transforms
func (t *Transformer) Transform(img *Image, thread int) (*Image, error) {
	rng := t.rng[thread]
	if t.Trans&HorizFlip != 0 && rng.Float64() > 0.5 {
		img = FlipH(img)
	}
	if t.Trans&Pan != 0 {
		ox := rng.Intn(2*PanPixels+1) - PanPixels
		oy := rng.Intn(2*PanPixels+1) - PanPixels
		if ox != 0 || oy != 0 {
			img = Shift(img, ox, oy)
		}
	}
	var err error
	if t.Trans&Normalise != 0 {
		img, err = t.normalise(img)
	}
	return img, err
}

func (t *Transformer) normalise(src *Image) (*Image, error) {
	channels := src.Channels
	if len(t.data.Mean) != channels || len(t.data.StdDev) != channels {
		return src, fmt.Errorf("error applying normalisation - missing mean and stddev")
	}
	dst := NewImageLike(src)
	for ch := 0; ch < channels; ch++ {
		pix := dst.Pixels(ch)
		for i, val := range src.Pixels(ch) {
			pix[i] = (val - t.data.Mean[ch]) / t.data.StdDev[ch]
		}
	}
	return dst, nil
}

// FlipH mirrors the image about the vertical axis.
func FlipH(src *Image) *Image {
	return remap(src, func(x, y int) (int, int) { return src.Width - x - 1, y })
}

// Shift translates the image by dx, dy pixels, reflecting at the edges.
func Shift(src *Image, dx, dy int) *Image {
	return remap(src, func(x, y int) (int, int) { return wrap(x-dx, src.Width), wrap(y-dy, src.Height) })
}

func remap(src *Image, fn func(x, y int) (int, int)) *Image {
	dst := NewImageLike(src)
	plane := src.Width * src.Height
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			sx, sy := fn(x, y)
			for ch := 0; ch < src.Channels; ch++ {
				dst.Pix[ch*plane+y*src.Width+x] = src.Pix[ch*plane+sy*src.Width+sx]
			}
		}
	}
	return dst
}

func wrap(x, dx int) int {
	if x < 0 {
		return -x - 1
	}
	if x >= dx {
		return 2*dx - x - 1
	}
	return x
}
