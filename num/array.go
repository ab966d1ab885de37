// Package num contains numeric Array processing routines such as optimised matrix multiplication.
package num

import (
	"fmt"
	"strings"
)

// Parameters for array printing
var (
	PrintThreshold = 12
	PrintEdgeitems = 4
)

// Array is an n dimensional tensor of float32 values stored in row major order.
// The leading dimension is the batch for network inputs and outputs.
type Array struct {
	dims []int
	data []float32
}

// NewArray allocates a new zeroed array with the given shape.
func NewArray(dims ...int) *Array {
	return &Array{dims: dims, data: make([]float32, Prod(dims))}
}

// NewArrayData wraps the given slice without copying, panics if the size does not match the shape.
func NewArrayData(data []float32, dims ...int) *Array {
	if len(data) != Prod(dims) {
		panic(fmt.Sprintf("NewArrayData: have %d values for shape %v", len(data), dims))
	}
	return &Array{dims: dims, data: data}
}

// NewArrayLike allocates a new zeroed array with the same shape as a.
func NewArrayLike(a *Array) *Array {
	return NewArray(a.dims...)
}

// Dims returns the shape of the array.
func (a *Array) Dims() []int { return a.dims }

// Size is the total number of elements.
func (a *Array) Size() int { return len(a.data) }

// Data is a reference to the raw values.
func (a *Array) Data() []float32 { return a.data }

// Reshape returns a view on the same data with a different shape.
// A single dimension may be -1 in which case it is inferred from the size.
func (a *Array) Reshape(dims ...int) *Array {
	shape := append([]int{}, dims...)
	for i := range shape {
		if shape[i] == -1 {
			other := 1
			for j, dim := range shape {
				if i != j {
					if dim == -1 {
						panic("Reshape: can only have single -1 value")
					}
					other *= dim
				}
			}
			shape[i] = len(a.data) / other
		}
	}
	if Prod(shape) != len(a.data) {
		panic(fmt.Sprintf("Reshape: cannot reshape %v to %v", a.dims, dims))
	}
	return &Array{dims: shape, data: a.data}
}

// Index returns a view on element i of the leading dimension, e.g. one image
// of a batch.
func (a *Array) Index(i int) *Array {
	if len(a.dims) < 2 {
		panic("Index: need at least 2 dimensions")
	}
	stride := Prod(a.dims[1:])
	return &Array{dims: a.dims[1:], data: a.data[i*stride : (i+1)*stride]}
}

// Row returns a view on row i of a matrix.
func (a *Array) Row(i int) []float32 {
	if len(a.dims) < 2 {
		panic("Row: need at least 2 dimensions")
	}
	stride := Prod(a.dims[1:])
	return a.data[i*stride : (i+1)*stride]
}

func (a *Array) String() string {
	if len(a.dims) <= 1 {
		return format(a.data)
	}
	rows := a.dims[0]
	s := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		if rows > PrintThreshold && i == PrintEdgeitems {
			s = append(s, "...")
			i = rows - PrintEdgeitems - 1
			continue
		}
		s = append(s, format(a.Row(i)))
	}
	return strings.Join(s, "\n")
}

func format(vals []float32) string {
	if len(vals) <= PrintThreshold {
		return fmt.Sprintf("%7.4f", vals)
	}
	head := fmt.Sprintf("%7.4f", vals[:PrintEdgeitems])
	tail := fmt.Sprintf("%7.4f", vals[len(vals)-PrintEdgeitems:])
	return head[:len(head)-1] + " ... " + tail[1:]
}

// Prod returns the product of the dimensions, 1 if empty.
func Prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// SameShape checks if the two arrays have identical dimensions.
func SameShape(a, b *Array) bool {
	if len(a.dims) != len(b.dims) {
		return false
	}
	for i, d := range a.dims {
		if b.dims[i] != d {
			return false
		}
	}
	return true
}
