package nnet

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/DeepakTatachar/curvature-clues/num"
)

const bnEpsilon = 1e-5

// Layer interface type represents one layer of the neural net.
type Layer interface {
	Init(inShape []int) Layer
	OutShape(inShape []int) []int
	Fprop(in *num.Array, train bool) *num.Array
	Bprop(grad *num.Array) *num.Array
	ToString() string
}

// ParamLayer is a layer with learned parameters
type ParamLayer interface {
	Layer
	InitParams(scale float32, normal bool, rng *rand.Rand)
	Params() (W, B *num.Array)
	SetParams(W, B []float32) error
	UpdateParams(eta, lambda, momentum float32, batch int)
}

// StatsLayer is a layer with running statistics which are part of the checkpoint state
type StatsLayer interface {
	Layer
	RunningStats() (mean, vari []float32)
	SetRunningStats(mean, vari []float32) error
}

// OutputLayer is the final layer in the stack
type OutputLayer interface {
	Layer
	Loss(labels []int32, loss []float32)
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() Layer {
	switch l.Type {
	case "conv":
		cfg := new(Conv)
		return cfg.unmarshal(l.Data)
	case "batchNorm":
		return &batchNorm{}
	case "avgPool":
		cfg := new(AvgPool)
		return cfg.unmarshal(l.Data)
	case "maxPool":
		cfg := new(MaxPool)
		return cfg.unmarshal(l.Data)
	case "linear":
		cfg := new(Linear)
		return cfg.unmarshal(l.Data)
	case "activation":
		cfg := new(Activation)
		return cfg.unmarshal(l.Data)
	case "logRegression":
		return &logRegression{}
	case "flatten":
		return &flatten{}
	default:
		panic("invalid layer type: " + l.Type)
	}
}

func (l LayerConfig) String() string {
	return l.Unmarshal().ToString()
}

// Convolutional layer, implements ParamLayer interface.
type Conv struct {
	Nfeats, Size, Stride, Pad int
}

func (c Conv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

func (c Conv) ToString() string {
	return fmt.Sprintf("conv %+v", c)
}

func (c *Conv) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &conv{Conv: *c}
}

// Batch normalisation layer, learns scale and shift per feature and keeps
// running statistics for evaluation mode.
type BatchNorm struct{}

func (c BatchNorm) Marshal() LayerConfig {
	return LayerConfig{Type: "batchNorm"}
}

// Average pooling layer, should follow conv layer.
type AvgPool struct {
	Size, Stride int
}

func (c AvgPool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "avgPool", Data: marshal(c)}
}

func (c AvgPool) ToString() string {
	return fmt.Sprintf("avgPool %+v", c)
}

func (c *AvgPool) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &avgPool{AvgPool: *c}
}

// Max pooling layer, should follow conv layer.
type MaxPool struct {
	Size, Stride int
}

func (c MaxPool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "maxPool", Data: marshal(c)}
}

func (c MaxPool) ToString() string {
	return fmt.Sprintf("maxPool %+v", c)
}

func (c *MaxPool) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &maxPool{MaxPool: *c}
}

// Linear fully connected layer, implements ParamLayer interface.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

func (c *Linear) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &linear{Linear: *c}
}

// Sigmoid, tanh or relu activation layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

func (c *Activation) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	layer := &activation{Activation: *c}
	switch c.Atype {
	case "relu":
		layer.activ = num.Relu
		layer.deriv = num.ReluD
		layer.fromOutput = false
	case "sigmoid":
		layer.activ = num.Sigmoid
		layer.deriv = num.SigmoidD
		layer.fromOutput = true
	case "tanh":
		layer.activ = num.Tanh
		layer.deriv = num.TanhD
		layer.fromOutput = true
	default:
		panic(fmt.Sprintf("activation type %s invalid", c.Atype))
	}
	return layer
}

// LogRegression output layer with soft max activation.
type LogRegression struct{}

func (c LogRegression) Marshal() LayerConfig {
	return LayerConfig{Type: "logRegression"}
}

// Flatten layer reshapes from 4 to 2 dimensions.
type Flatten struct{}

func (c Flatten) Marshal() LayerConfig {
	return LayerConfig{Type: "flatten"}
}

// convolutional layer implementation
type conv struct {
	Conv
	paramBase
	inShape []int
	src     *num.Array
	dst     *num.Array
	dsrc    *num.Array
	col     *num.Array
	dcol    *num.Array
}

func (l *conv) OutShape(inShape []int) []int {
	h := num.ConvOut(inShape[2], l.Size, l.stride(), l.Pad)
	w := num.ConvOut(inShape[3], l.Size, l.stride(), l.Pad)
	return []int{inShape[0], l.Nfeats, h, w}
}

func (l *conv) ToString() string { return l.Conv.ToString() }

func (l *conv) stride() int {
	if l.Stride == 0 {
		return 1
	}
	return l.Stride
}

func (l *conv) Init(inShape []int) Layer {
	if len(inShape) != 4 {
		panic(fmt.Sprintf("Conv: expect 4 dimensional input, have %v", inShape))
	}
	l.inShape = append([]int{}, inShape...)
	nin := inShape[1] * l.Size * l.Size
	l.paramBase = newParams([]int{l.Nfeats, nin}, []int{l.Nfeats})
	out := l.OutShape(inShape)
	l.col = num.NewArray(nin, out[2]*out[3])
	l.dcol = num.NewArrayLike(l.col)
	return l
}

func (l *conv) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	batch := in.Dims()[0]
	out := l.OutShape(in.Dims())
	if l.dst == nil || l.dst.Dims()[0] != batch {
		l.dst = num.NewArray(out...)
		l.dsrc = num.NewArray(in.Dims()...)
	}
	oh, ow := out[2], out[3]
	for n := 0; n < batch; n++ {
		dst := l.dst.Index(n).Reshape(l.Nfeats, oh*ow)
		num.Im2col(in.Index(n), l.Size, l.stride(), l.Pad, l.col)
		num.Gemm(1, 0, l.w, l.col, dst, num.NoTrans, num.NoTrans)
		for f := 0; f < l.Nfeats; f++ {
			bias := l.b.Data()[f]
			row := dst.Row(f)
			for i := range row {
				row[i] += bias
			}
		}
	}
	return l.dst
}

func (l *conv) Bprop(grad *num.Array) *num.Array {
	batch := grad.Dims()[0]
	out := grad.Dims()
	oh, ow := out[2], out[3]
	num.Fill(l.dw, 0)
	num.Fill(l.db, 0)
	channels, h, w := l.inShape[1], l.inShape[2], l.inShape[3]
	for n := 0; n < batch; n++ {
		g := grad.Index(n).Reshape(l.Nfeats, oh*ow)
		num.Im2col(l.src.Index(n), l.Size, l.stride(), l.Pad, l.col)
		num.Gemm(1, 1, g, l.col, l.dw, num.NoTrans, num.Trans)
		for f := 0; f < l.Nfeats; f++ {
			var sum float32
			for _, v := range g.Row(f) {
				sum += v
			}
			l.db.Data()[f] += sum
		}
		num.Gemm(1, 0, l.w, g, l.dcol, num.Trans, num.NoTrans)
		num.Col2im(l.dcol, channels, h, w, l.Size, l.stride(), l.Pad, l.dsrc.Index(n))
	}
	return l.dsrc
}

// batch normalisation layer implementation, handles 2d and 4d input
type batchNorm struct {
	inShape      []int
	groups, size int
	w, b         *num.Array
	dw, db       *num.Array
	vw, vb       *num.Array
	runMean      []float32
	runVar       []float32
	mean, vari   []float32
	istd         []float32
	xhat         *num.Array
	dst          *num.Array
	dsrc         *num.Array
}

func (l *batchNorm) ToString() string { return "batchNorm" }

func (l *batchNorm) OutShape(inShape []int) []int { return inShape }

func (l *batchNorm) Init(inShape []int) Layer {
	switch len(inShape) {
	case 2:
		l.groups, l.size = inShape[1], 1
	case 4:
		l.groups, l.size = inShape[1], inShape[2]*inShape[3]
	default:
		panic(fmt.Sprintf("BatchNorm: expect 2 or 4 dimensional input, have %v", inShape))
	}
	l.inShape = append([]int{}, inShape...)
	l.w = num.NewArray(l.groups)
	l.b = num.NewArray(l.groups)
	l.dw = num.NewArray(l.groups)
	l.db = num.NewArray(l.groups)
	l.vw = num.NewArray(l.groups)
	l.vb = num.NewArray(l.groups)
	num.Fill(l.w, 1)
	l.runMean = make([]float32, l.groups)
	l.runVar = make([]float32, l.groups)
	for i := range l.runVar {
		l.runVar[i] = 1
	}
	l.mean = make([]float32, l.groups)
	l.vari = make([]float32, l.groups)
	l.istd = make([]float32, l.groups)
	return l
}

// gamma is stored as the weight and beta as the bias parameter
func (l *batchNorm) InitParams(scale float32, normal bool, rng *rand.Rand) {
	num.Fill(l.w, 1)
	num.Fill(l.b, 0)
}

func (l *batchNorm) Params() (W, B *num.Array) { return l.w, l.b }

func (l *batchNorm) SetParams(W, B []float32) error {
	if len(W) != l.groups || len(B) != l.groups {
		return fmt.Errorf("batchNorm: have %d params expecting %d", len(W), l.groups)
	}
	copy(l.w.Data(), W)
	copy(l.b.Data(), B)
	return nil
}

func (l *batchNorm) UpdateParams(eta, lambda, momentum float32, batch int) {
	update(l.w, l.dw, l.vw, eta, 0, momentum, batch)
	update(l.b, l.db, l.vb, eta, 0, momentum, batch)
}

func (l *batchNorm) RunningStats() (mean, vari []float32) {
	return l.runMean, l.runVar
}

func (l *batchNorm) SetRunningStats(mean, vari []float32) error {
	if len(mean) != l.groups || len(vari) != l.groups {
		return fmt.Errorf("batchNorm: have %d stats expecting %d", len(mean), l.groups)
	}
	copy(l.runMean, mean)
	copy(l.runVar, vari)
	return nil
}

const bnMomentum = 0.1

func (l *batchNorm) Fprop(in *num.Array, train bool) *num.Array {
	batch := in.Dims()[0]
	if l.dst == nil || l.dst.Dims()[0] != batch {
		l.dst = num.NewArray(in.Dims()...)
		l.dsrc = num.NewArray(in.Dims()...)
		l.xhat = num.NewArray(in.Dims()...)
	}
	mean, vari := l.runMean, l.runVar
	if train {
		num.GroupMeanVar(in, l.groups, l.size, l.mean, l.vari)
		for g := range l.runMean {
			l.runMean[g] = (1-bnMomentum)*l.runMean[g] + bnMomentum*l.mean[g]
			l.runVar[g] = (1-bnMomentum)*l.runVar[g] + bnMomentum*l.vari[g]
		}
		mean, vari = l.mean, l.vari
	}
	for g := 0; g < l.groups; g++ {
		l.istd[g] = float32(1 / math.Sqrt(float64(vari[g])+bnEpsilon))
	}
	x, y, xhat := in.Data(), l.dst.Data(), l.xhat.Data()
	gamma, beta := l.w.Data(), l.b.Data()
	for b := 0; b < batch; b++ {
		for g := 0; g < l.groups; g++ {
			base := (b*l.groups + g) * l.size
			for i := 0; i < l.size; i++ {
				xh := (x[base+i] - mean[g]) * l.istd[g]
				xhat[base+i] = xh
				y[base+i] = gamma[g]*xh + beta[g]
			}
		}
	}
	return l.dst
}

func (l *batchNorm) Bprop(grad *num.Array) *num.Array {
	batch := grad.Dims()[0]
	n := float32(batch * l.size)
	dy, xhat, dx := grad.Data(), l.xhat.Data(), l.dsrc.Data()
	gamma := l.w.Data()
	dgamma, dbeta := l.dw.Data(), l.db.Data()
	for g := 0; g < l.groups; g++ {
		var sumDy, sumDyXhat float32
		for b := 0; b < batch; b++ {
			base := (b*l.groups + g) * l.size
			for i := 0; i < l.size; i++ {
				sumDy += dy[base+i]
				sumDyXhat += dy[base+i] * xhat[base+i]
			}
		}
		dgamma[g] = sumDyXhat
		dbeta[g] = sumDy
		k := gamma[g] * l.istd[g] / n
		for b := 0; b < batch; b++ {
			base := (b*l.groups + g) * l.size
			for i := 0; i < l.size; i++ {
				dx[base+i] = k * (n*dy[base+i] - sumDy - xhat[base+i]*sumDyXhat)
			}
		}
	}
	return l.dsrc
}

// pooling layer implementations
type avgPool struct {
	AvgPool
	src  *num.Array
	dst  *num.Array
	dsrc *num.Array
}

func (l *avgPool) ToString() string { return l.AvgPool.ToString() }

func (l *avgPool) stride() int {
	if l.Stride == 0 {
		return l.Size
	}
	return l.Stride
}

func (l *avgPool) OutShape(inShape []int) []int {
	h := num.ConvOut(inShape[2], l.Size, l.stride(), 0)
	w := num.ConvOut(inShape[3], l.Size, l.stride(), 0)
	return []int{inShape[0], inShape[1], h, w}
}

func (l *avgPool) Init(inShape []int) Layer {
	if len(inShape) != 4 {
		panic(fmt.Sprintf("AvgPool: expect 4 dimensional input, have %v", inShape))
	}
	return l
}

func (l *avgPool) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	batch := in.Dims()[0]
	if l.dst == nil || l.dst.Dims()[0] != batch {
		l.dst = num.NewArray(l.OutShape(in.Dims())...)
		l.dsrc = num.NewArray(in.Dims()...)
	}
	for n := 0; n < batch; n++ {
		num.AvgPool(in.Index(n), l.dst.Index(n), l.Size, l.stride())
	}
	return l.dst
}

func (l *avgPool) Bprop(grad *num.Array) *num.Array {
	batch := grad.Dims()[0]
	for n := 0; n < batch; n++ {
		num.AvgPoolGrad(grad.Index(n), l.dsrc.Index(n), l.Size, l.stride())
	}
	return l.dsrc
}

type maxPool struct {
	MaxPool
	src  *num.Array
	dst  *num.Array
	dsrc *num.Array
	mask []int
}

func (l *maxPool) ToString() string { return l.MaxPool.ToString() }

func (l *maxPool) stride() int {
	if l.Stride == 0 {
		return l.Size
	}
	return l.Stride
}

func (l *maxPool) OutShape(inShape []int) []int {
	h := num.ConvOut(inShape[2], l.Size, l.stride(), 0)
	w := num.ConvOut(inShape[3], l.Size, l.stride(), 0)
	return []int{inShape[0], inShape[1], h, w}
}

func (l *maxPool) Init(inShape []int) Layer {
	if len(inShape) != 4 {
		panic(fmt.Sprintf("MaxPool: expect 4 dimensional input, have %v", inShape))
	}
	return l
}

func (l *maxPool) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	batch := in.Dims()[0]
	out := l.OutShape(in.Dims())
	if l.dst == nil || l.dst.Dims()[0] != batch {
		l.dst = num.NewArray(out...)
		l.dsrc = num.NewArray(in.Dims()...)
		l.mask = make([]int, num.Prod(out[1:]))
	}
	for n := 0; n < batch; n++ {
		num.MaxPool(in.Index(n), l.dst.Index(n), l.Size, l.stride(), nil)
	}
	return l.dst
}

func (l *maxPool) Bprop(grad *num.Array) *num.Array {
	batch := grad.Dims()[0]
	for n := 0; n < batch; n++ {
		num.MaxPool(l.src.Index(n), l.dst.Index(n), l.Size, l.stride(), l.mask)
		num.MaxPoolGrad(grad.Index(n), l.dsrc.Index(n), l.mask)
	}
	return l.dsrc
}

// linear layer implementation
type linear struct {
	Linear
	paramBase
	src  *num.Array
	dst  *num.Array
	dsrc *num.Array
	nin  int
}

func (l *linear) ToString() string { return l.Linear.ToString() }

func (l *linear) OutShape(inShape []int) []int {
	return []int{inShape[0], l.Nout}
}

func (l *linear) Init(inShape []int) Layer {
	if len(inShape) != 2 {
		panic(fmt.Sprintf("Linear: expect 2 dimensional input, have %v", inShape))
	}
	l.nin = inShape[1]
	l.paramBase = newParams([]int{l.nin, l.Nout}, []int{l.Nout})
	return l
}

func (l *linear) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	batch := in.Dims()[0]
	if l.dst == nil || l.dst.Dims()[0] != batch {
		l.dst = num.NewArray(batch, l.Nout)
		l.dsrc = num.NewArray(batch, l.nin)
	}
	num.Gemm(1, 0, in, l.w, l.dst, num.NoTrans, num.NoTrans)
	bias := l.b.Data()
	for n := 0; n < batch; n++ {
		row := l.dst.Row(n)
		for i := range row {
			row[i] += bias[i]
		}
	}
	return l.dst
}

func (l *linear) Bprop(grad *num.Array) *num.Array {
	batch := grad.Dims()[0]
	num.Gemm(1, 0, l.src, grad, l.dw, num.Trans, num.NoTrans)
	db := l.db.Data()
	for i := range db {
		db[i] = 0
	}
	for n := 0; n < batch; n++ {
		for i, v := range grad.Row(n) {
			db[i] += v
		}
	}
	num.Gemm(1, 0, grad, l.w, l.dsrc, num.NoTrans, num.Trans)
	return l.dsrc
}

// activation layers
type activation struct {
	Activation
	activ      func(x, y *num.Array)
	deriv      func(x, grad, out *num.Array)
	fromOutput bool
	src        *num.Array
	dst        *num.Array
	dsrc       *num.Array
}

func (l *activation) ToString() string { return l.Activation.ToString() }

func (l *activation) OutShape(inShape []int) []int { return inShape }

func (l *activation) Init(inShape []int) Layer { return l }

func (l *activation) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	if l.dst == nil || !num.SameShape(l.dst, in) {
		l.dst = num.NewArray(in.Dims()...)
		l.dsrc = num.NewArray(in.Dims()...)
	}
	l.activ(in, l.dst)
	return l.dst
}

func (l *activation) Bprop(grad *num.Array) *num.Array {
	if l.fromOutput {
		l.deriv(l.dst, grad, l.dsrc)
	} else {
		l.deriv(l.src, grad, l.dsrc)
	}
	return l.dsrc
}

// log regression output layer
type logRegression struct {
	dst  *num.Array
	dsrc *num.Array
}

func (l *logRegression) ToString() string { return "logRegression" }

func (l *logRegression) OutShape(inShape []int) []int { return inShape }

func (l *logRegression) Init(inShape []int) Layer { return l }

func (l *logRegression) Fprop(in *num.Array, train bool) *num.Array {
	if l.dst == nil || !num.SameShape(l.dst, in) {
		l.dst = num.NewArray(in.Dims()...)
		l.dsrc = num.NewArray(in.Dims()...)
	}
	num.Softmax(in, l.dst)
	return l.dst
}

// grad at the input is yPred - yOneHot since softmax and cross entropy loss are fused
func (l *logRegression) Bprop(grad *num.Array) *num.Array {
	num.Copy(l.dsrc, grad)
	return l.dsrc
}

func (l *logRegression) Loss(labels []int32, loss []float32) {
	num.CrossEntropy(l.dst, labels, loss)
}

// flatten layer
type flatten struct {
	src *num.Array
	dst *num.Array
}

func (l *flatten) ToString() string { return "flatten" }

func (l *flatten) OutShape(inShape []int) []int {
	return []int{inShape[0], num.Prod(inShape[1:])}
}

func (l *flatten) Init(inShape []int) Layer { return l }

func (l *flatten) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	l.dst = in.Reshape(in.Dims()[0], -1)
	return l.dst
}

func (l *flatten) Bprop(grad *num.Array) *num.Array {
	return grad.Reshape(l.src.Dims()...)
}

// weight and bias parameters with momentum buffers
type paramBase struct {
	w, b   *num.Array
	dw, db *num.Array
	vw, vb *num.Array
}

func newParams(wShape, bShape []int) paramBase {
	return paramBase{
		w:  num.NewArray(wShape...),
		b:  num.NewArray(bShape...),
		dw: num.NewArray(wShape...),
		db: num.NewArray(bShape...),
		vw: num.NewArray(wShape...),
		vb: num.NewArray(bShape...),
	}
}

func (p paramBase) Params() (W, B *num.Array) {
	return p.w, p.b
}

func (p paramBase) InitParams(scale float32, normal bool, rng *rand.Rand) {
	weights := p.w.Data()
	for i := range weights {
		if normal {
			weights[i] = float32(rng.NormFloat64()) * scale
		} else {
			weights[i] = (2*rng.Float32() - 1) * scale
		}
	}
	num.Fill(p.b, 0)
	num.Fill(p.vw, 0)
	num.Fill(p.vb, 0)
}

func (p paramBase) SetParams(W, B []float32) error {
	if len(W) != p.w.Size() || len(B) != p.b.Size() {
		return fmt.Errorf("layer: have %d weights and %d biases expecting %d and %d",
			len(W), len(B), p.w.Size(), p.b.Size())
	}
	copy(p.w.Data(), W)
	copy(p.b.Data(), B)
	return nil
}

func (p paramBase) UpdateParams(eta, lambda, momentum float32, batch int) {
	update(p.w, p.dw, p.vw, eta, lambda, momentum, batch)
	update(p.b, p.db, p.vb, eta, 0, momentum, batch)
}

// SGD update with weight decay and momentum in the torch style:
// v = momentum*v + grad/batch + lambda*w ; w -= eta*v
func update(w, dw, v *num.Array, eta, lambda, momentum float32, batch int) {
	wd, gd, vd := w.Data(), dw.Data(), v.Data()
	scale := 1 / float32(batch)
	for i := range vd {
		g := gd[i]*scale + lambda*wd[i]
		vd[i] = momentum*vd[i] + g
		wd[i] -= eta * vd[i]
	}
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) {
	err := json.Unmarshal(data, v)
	if err != nil {
		panic(err)
	}
}
