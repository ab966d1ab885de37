package num

import "fmt"

// ConvOut returns the output size for a convolution or pooling over in elements.
func ConvOut(in, size, stride, pad int) int {
	return (in+2*pad-size)/stride + 1
}

// Im2col unfolds image src with shape (channels, h, w) into the col matrix where
// each column holds one receptive field of size channels*ksize*ksize.
// col must have shape (channels*ksize*ksize, outh*outw).
func Im2col(src *Array, ksize, stride, pad int, col *Array) {
	if len(src.dims) != 3 {
		panic(fmt.Sprintf("Im2col: expect 3 dimensional input, have %v", src.dims))
	}
	channels, h, w := src.dims[0], src.dims[1], src.dims[2]
	oh, ow := ConvOut(h, ksize, stride, pad), ConvOut(w, ksize, stride, pad)
	if col.dims[0] != channels*ksize*ksize || col.dims[1] != oh*ow {
		panic(fmt.Sprintf("Im2col: col shape %v expecting [%d %d]", col.dims, channels*ksize*ksize, oh*ow))
	}
	for c := 0; c < channels; c++ {
		for ky := 0; ky < ksize; ky++ {
			for kx := 0; kx < ksize; kx++ {
				row := (c*ksize+ky)*ksize + kx
				for y := 0; y < oh; y++ {
					iy := y*stride + ky - pad
					for x := 0; x < ow; x++ {
						ix := x*stride + kx - pad
						var val float32
						if iy >= 0 && iy < h && ix >= 0 && ix < w {
							val = src.data[(c*h+iy)*w+ix]
						}
						col.data[row*oh*ow+y*ow+x] = val
					}
				}
			}
		}
	}
}

// Col2im folds the col matrix gradient back onto the image gradient, summing
// where receptive fields overlap. Inverse mapping of Im2col.
func Col2im(col *Array, channels, h, w, ksize, stride, pad int, dst *Array) {
	oh, ow := ConvOut(h, ksize, stride, pad), ConvOut(w, ksize, stride, pad)
	Fill(dst, 0)
	for c := 0; c < channels; c++ {
		for ky := 0; ky < ksize; ky++ {
			for kx := 0; kx < ksize; kx++ {
				row := (c*ksize+ky)*ksize + kx
				for y := 0; y < oh; y++ {
					iy := y*stride + ky - pad
					if iy < 0 || iy >= h {
						continue
					}
					for x := 0; x < ow; x++ {
						ix := x*stride + kx - pad
						if ix < 0 || ix >= w {
							continue
						}
						dst.data[(c*h+iy)*w+ix] += col.data[row*oh*ow+y*ow+x]
					}
				}
			}
		}
	}
}

// AvgPool downsamples each channel of src (channels, h, w) by averaging over
// size x size windows with the given stride.
func AvgPool(src, dst *Array, size, stride int) {
	channels, h, w := src.dims[0], src.dims[1], src.dims[2]
	oh, ow := ConvOut(h, size, stride, 0), ConvOut(w, size, stride, 0)
	norm := 1 / float32(size*size)
	for c := 0; c < channels; c++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				var sum float32
				for ky := 0; ky < size; ky++ {
					for kx := 0; kx < size; kx++ {
						sum += src.data[(c*h+y*stride+ky)*w+x*stride+kx]
					}
				}
				dst.data[(c*oh+y)*ow+x] = sum * norm
			}
		}
	}
}

// AvgPoolGrad spreads the output gradient evenly back over each pooling window.
func AvgPoolGrad(grad, dst *Array, size, stride int) {
	channels, h, w := dst.dims[0], dst.dims[1], dst.dims[2]
	oh, ow := ConvOut(h, size, stride, 0), ConvOut(w, size, stride, 0)
	norm := 1 / float32(size*size)
	Fill(dst, 0)
	for c := 0; c < channels; c++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				g := grad.data[(c*oh+y)*ow+x] * norm
				for ky := 0; ky < size; ky++ {
					for kx := 0; kx < size; kx++ {
						dst.data[(c*h+y*stride+ky)*w+x*stride+kx] += g
					}
				}
			}
		}
	}
}

// MaxPool downsamples each channel of src by taking the maximum over size x size
// windows. If mask is not nil it records the index of the maximum for backprop.
func MaxPool(src, dst *Array, size, stride int, mask []int) {
	channels, h, w := src.dims[0], src.dims[1], src.dims[2]
	oh, ow := ConvOut(h, size, stride, 0), ConvOut(w, size, stride, 0)
	for c := 0; c < channels; c++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				best := -1
				var max float32
				for ky := 0; ky < size; ky++ {
					for kx := 0; kx < size; kx++ {
						pos := (c*h+y*stride+ky)*w + x*stride + kx
						if best < 0 || src.data[pos] > max {
							best, max = pos, src.data[pos]
						}
					}
				}
				opos := (c*oh+y)*ow + x
				dst.data[opos] = max
				if mask != nil {
					mask[opos] = best
				}
			}
		}
	}
}

// MaxPoolGrad routes the output gradient back to the maximum input positions.
func MaxPoolGrad(grad, dst *Array, mask []int) {
	Fill(dst, 0)
	for i, pos := range mask {
		dst.data[pos] += grad.data[i]
	}
}
