// Package tensor provides the dense float32 NCHW buffers exchanged between the
// tiling engine and inference sessions.
//
// A Tensor is a plain value holder: shape plus a flat, channel-major data
// slice. Operations that change the shape (Region, Crop, ReflectPad, Stack)
// always return a new Tensor; the source is never mutated.
package tensor

import (
	"errors"
	"fmt"
)

// ErrInvalidShape is returned when a shape is non-positive or does not match the data length.
var ErrInvalidShape = errors.New("tensor: invalid shape")

// Shape is the (N, C, H, W) extent of a tensor.
type Shape [4]int

// String formats the shape like "(1, 3, 128, 128)".
func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s[0], s[1], s[2], s[3])
}

// Tensor is a dense float32 array with axes (batch, channel, height, width).
type Tensor struct {
	N, C, H, W int
	Data       []float32
}

// New allocates a zero-filled tensor.
// Panics on negative dimensions, which are programming errors.
func New(n, c, h, w int) *Tensor {
	if n < 0 || c < 0 || h < 0 || w < 0 {
		panic(fmt.Sprintf("tensor: negative dimension in %v", Shape{n, c, h, w}))
	}
	return &Tensor{N: n, C: c, H: h, W: w, Data: make([]float32, n*c*h*w)}
}

// FromData wraps an existing slice without copying.
func FromData(n, c, h, w int, data []float32) (*Tensor, error) {
	if n <= 0 || c <= 0 || h <= 0 || w <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, Shape{n, c, h, w})
	}
	if len(data) != n*c*h*w {
		return nil, fmt.Errorf("%w: %v needs %d values, got %d",
			ErrInvalidShape, Shape{n, c, h, w}, n*c*h*w, len(data))
	}
	return &Tensor{N: n, C: c, H: h, W: w, Data: data}, nil
}

// Shape returns the tensor extent.
func (t *Tensor) Shape() Shape {
	return Shape{t.N, t.C, t.H, t.W}
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return t.N * t.C * t.H * t.W
}

// Index returns the flat offset of element (n, c, y, x).
func (t *Tensor) Index(n, c, y, x int) int {
	return ((n*t.C+c)*t.H+y)*t.W + x
}

// At returns element (n, c, y, x).
func (t *Tensor) At(n, c, y, x int) float32 {
	return t.Data[t.Index(n, c, y, x)]
}

// Set stores v at element (n, c, y, x).
func (t *Tensor) Set(n, c, y, x int, v float32) {
	t.Data[t.Index(n, c, y, x)] = v
}

// Plane returns the H*W slice of sample n, channel c. The slice aliases t.Data.
func (t *Tensor) Plane(n, c int) []float32 {
	off := t.Index(n, c, 0, 0)
	return t.Data[off : off+t.H*t.W]
}

// Row returns row y of sample n, channel c. The slice aliases t.Data.
func (t *Tensor) Row(n, c, y int) []float32 {
	off := t.Index(n, c, y, 0)
	return t.Data[off : off+t.W]
}

// Sample returns sample n as a (1, C, H, W) view sharing t.Data.
func (t *Tensor) Sample(n int) *Tensor {
	size := t.C * t.H * t.W
	return &Tensor{N: 1, C: t.C, H: t.H, W: t.W, Data: t.Data[n*size : (n+1)*size]}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Tensor{N: t.N, C: t.C, H: t.H, W: t.W, Data: data}
}

// Reshape reinterprets the data with a new shape of the same element count.
// The returned tensor shares t.Data.
func (t *Tensor) Reshape(n, c, h, w int) (*Tensor, error) {
	if n*c*h*w != t.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrInvalidShape, t.Shape(), Shape{n, c, h, w})
	}
	return FromData(n, c, h, w, t.Data)
}

// Region copies the window [y0,y1) x [x0,x1) of sample n into a new (1, C, y1-y0, x1-x0) tensor.
func (t *Tensor) Region(n, x0, y0, x1, y1 int) *Tensor {
	h, w := y1-y0, x1-x0
	out := New(1, t.C, h, w)
	for c := 0; c < t.C; c++ {
		for y := 0; y < h; y++ {
			src := t.Index(n, c, y0+y, x0)
			copy(out.Row(0, c, y), t.Data[src:src+w])
		}
	}
	return out
}

// Crop keeps the top-left h x w window of every sample.
func (t *Tensor) Crop(h, w int) *Tensor {
	if h == t.H && w == t.W {
		return t
	}
	out := New(t.N, t.C, h, w)
	for n := 0; n < t.N; n++ {
		for c := 0; c < t.C; c++ {
			for y := 0; y < h; y++ {
				copy(out.Row(n, c, y), t.Row(n, c, y)[:w])
			}
		}
	}
	return out
}

// Stack concatenates single-sample tensors of identical (C, H, W) along the batch axis.
func Stack(items []*Tensor) (*Tensor, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrInvalidShape)
	}
	first := items[0]
	size := first.C * first.H * first.W
	out := New(0, first.C, first.H, first.W)
	out.Data = make([]float32, 0, size*len(items))
	for i, it := range items {
		if it.N != 1 || it.C != first.C || it.H != first.H || it.W != first.W {
			return nil, fmt.Errorf("%w: item %d has shape %v, want %v",
				ErrInvalidShape, i, it.Shape(), Shape{1, first.C, first.H, first.W})
		}
		out.Data = append(out.Data, it.Data...)
	}
	out.N = len(items)
	return out, nil
}
