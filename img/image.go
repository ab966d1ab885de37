// Package img contains routines for manipulating sets of images.
package img

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

var (
	GrayModel = color.ModelFunc(grayModel)
	RGBModel  = color.ModelFunc(rgbModel)
)

// Gray color stores a float in range 0-1
type Gray struct {
	Y float32
}

func (c Gray) RGBA() (r, g, b, a uint32) {
	y := clampu(c.Y, 0, 1)
	return y, y, y, 0xffff
}

func grayModel(c color.Color) color.Color {
	if _, ok := c.(Gray); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Gray{Y: 0.299*float32(r)/0xffff + 0.587*float32(g)/0xffff + 0.114*float32(b)/0xffff}
}

// RGB color is stored as a float for each channel with values in range 0-1
type RGB struct {
	R, G, B float32
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return clampu(c.R, 0, 1), clampu(c.G, 0, 1), clampu(c.B, 0, 1), 0xffff
}

func rgbModel(c color.Color) color.Color {
	if _, ok := c.(RGB); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB{R: float32(r) / 0xffff, G: float32(g) / 0xffff, B: float32(b) / 0xffff}
}

// Image type stores pixel data as float32 values with each channel plane held
// contiguously in row major order, i.e. the same layout as a (channels, height,
// width) input tensor.
type Image struct {
	Pix      []float32
	Height   int
	Width    int
	Channels int
}

// NewGray creates a new single channel image.
func NewGray(width, height int) *Image {
	return &Image{Pix: make([]float32, height*width), Height: height, Width: width, Channels: 1}
}

// NewRGB creates a new image with separate r, g and b planes.
func NewRGB(width, height int) *Image {
	return &Image{Pix: make([]float32, height*width*3), Height: height, Width: width, Channels: 3}
}

func NewImageLike(src *Image) *Image {
	return &Image{Pix: make([]float32, len(src.Pix)), Height: src.Height, Width: src.Width, Channels: src.Channels}
}

func (m *Image) ColorModel() color.Model {
	if m.Channels == 1 {
		return GrayModel
	}
	return RGBModel
}

func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *Image) At(x, y int) color.Color {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		if m.Channels == 1 {
			return Gray{}
		}
		return RGB{}
	}
	if m.Channels == 1 {
		return Gray{Y: m.Pix[y*m.Width+x]}
	}
	plane := m.Width * m.Height
	return RGB{
		R: m.Pix[y*m.Width+x],
		G: m.Pix[plane+y*m.Width+x],
		B: m.Pix[2*plane+y*m.Width+x],
	}
}

func (m *Image) Set(x, y int, c color.Color) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return
	}
	if m.Channels == 1 {
		m.Pix[y*m.Width+x] = grayModel(c).(Gray).Y
		return
	}
	rgb := rgbModel(c).(RGB)
	plane := m.Width * m.Height
	m.Pix[y*m.Width+x] = rgb.R
	m.Pix[plane+y*m.Width+x] = rgb.G
	m.Pix[2*plane+y*m.Width+x] = rgb.B
}

// Pixels returns the raw data for the given channel, or all channels if ch is -1.
func (m *Image) Pixels(ch int) []float32 {
	if ch >= 0 && ch < m.Channels {
		plane := m.Width * m.Height
		return m.Pix[ch*plane : (ch+1)*plane]
	}
	return m.Pix
}

// Shape returns channels, height, width
func (m *Image) Shape() []int {
	return []int{m.Channels, m.Height, m.Width}
}

// Resample scales the image to width w and height h using Lanczos resampling.
// Returns the image unchanged if it already has the requested size.
func Resample(src *Image, w, h int) *Image {
	if src.Width == w && src.Height == h {
		return src
	}
	tmp := image.NewNRGBA(src.Bounds())
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			tmp.Set(x, y, src.At(x, y))
		}
	}
	scaled := resize.Resize(uint(w), uint(h), tmp, resize.Lanczos3)
	var dst *Image
	if src.Channels == 1 {
		dst = NewGray(w, h)
	} else {
		dst = NewRGB(w, h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(x, y, scaled.At(x, y))
		}
	}
	return dst
}

func clampu(x, x0, x1 float32) uint32 {
	return uint32(clamp(x, x0, x1) * 0xffff)
}

func clamp(x, x0, x1 float32) float32 {
	if x < x0 {
		return x0
	}
	if x > x1 {
		return x1
	}
	return x
}
