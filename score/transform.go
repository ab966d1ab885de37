package score

import "github.com/DeepakTatachar/curvature-clues/num"

// Transform is a fixed spatial transformation applied to each input tensor
// before scoring. The zero value is the identity.
type Transform struct {
	ShiftX, ShiftY int
	Flip           bool
}

func (t Transform) identity() bool {
	return t.ShiftX == 0 && t.ShiftY == 0 && !t.Flip
}

// Apply transforms the batch of image tensors with shape (batch, channels, h, w)
// in place: horizontal flip then pixel shift with reflection at the edges.
func (t Transform) Apply(x *num.Array) {
	if t.identity() {
		return
	}
	dims := x.Dims()
	if len(dims) != 4 {
		panic("Transform: expect 4 dimensional input")
	}
	batch, channels, h, w := dims[0], dims[1], dims[2], dims[3]
	tmp := make([]float32, h*w)
	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			plane := x.Index(n).Index(c).Data()
			for y := 0; y < h; y++ {
				for xx := 0; xx < w; xx++ {
					sx, sy := xx, y
					if t.Flip {
						sx = w - sx - 1
					}
					sx = reflect(sx-t.ShiftX, w)
					sy = reflect(sy-t.ShiftY, h)
					tmp[y*w+xx] = plane[sy*w+sx]
				}
			}
			copy(plane, tmp)
		}
	}
}

func reflect(x, dx int) int {
	if x < 0 {
		return -x - 1
	}
	if x >= dx {
		return 2*dx - x - 1
	}
	return x
}
