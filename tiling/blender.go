package tiling

import (
	"fmt"
	"sync"

	"go_imgutils/tensor"

	"gonum.org/v1/gonum/floats"
)

// Blender accumulates weighted tile outputs into a full-resolution canvas.
//
// The canvas holds a float64 accumulation buffer of shape (C, H*scale,
// W*scale) and one weight-sum plane of shape (H*scale, W*scale); the weight
// is identical for every channel so it is stored once. Add is safe to call
// from several goroutines: canvas writes are serialized by a mutex, and the
// accumulation is order-independent up to floating-point rounding.
type Blender struct {
	mu sync.Mutex

	channels int
	srcH     int
	srcW     int
	scale    int
	outH     int
	outW     int
	tileOut  int

	acc    []float64
	weight []float64
	ramps  *rampSet

	// scratch rows, guarded by mu
	wrow []float64
	vrow []float64
}

// NewBlender allocates a zeroed canvas for an h x w source upscaled by scale.
func NewBlender(channels, h, w, scale, tileSize, overlap int) *Blender {
	outH, outW := h*scale, w*scale
	tileOut := tileSize * scale
	return &Blender{
		channels: channels,
		srcH:     h,
		srcW:     w,
		scale:    scale,
		outH:     outH,
		outW:     outW,
		tileOut:  tileOut,
		acc:      make([]float64, channels*outH*outW),
		weight:   make([]float64, outH*outW),
		ramps:    newRampSet(tileOut, overlap*scale),
		wrow:     make([]float64, tileOut),
		vrow:     make([]float64, tileOut),
	}
}

// Add blends sample n of out, which must be (.., C, tile*scale, tile*scale),
// into the canvas at the tile's scaled position. Only the tile's actual
// extent is used; padding added for boundary tiles is discarded here.
func (b *Blender) Add(t Tile, out *tensor.Tensor, n int) error {
	if out.C != b.channels || out.H != b.tileOut || out.W != b.tileOut {
		return fmt.Errorf("%w: tile %v got %v, want (*, %d, %d, %d)",
			ErrShapeMismatch, t, out.Shape(), b.channels, b.tileOut, b.tileOut)
	}

	dy0, dx0 := t.Y0*b.scale, t.X0*b.scale
	dh, dw := t.Height()*b.scale, t.Width()*b.scale
	ry := b.ramps.get(t.Y0, t.Y1, b.srcH)
	rx := b.ramps.get(t.X0, t.X1, b.srcW)[:dw]

	b.mu.Lock()
	defer b.mu.Unlock()

	wrow, vrow := b.wrow[:dw], b.vrow[:dw]
	plane := b.outH * b.outW
	for y := 0; y < dh; y++ {
		floats.ScaleTo(wrow, ry[y], rx)

		off := (dy0+y)*b.outW + dx0
		floats.Add(b.weight[off:off+dw], wrow)

		for c := 0; c < b.channels; c++ {
			src := out.Row(n, c, y)[:dw]
			for x, v := range src {
				vrow[x] = float64(v)
			}
			floats.Mul(vrow, wrow)
			coff := c*plane + off
			floats.Add(b.acc[coff:coff+dw], vrow)
		}
	}
	return nil
}

// MinWeight returns the smallest weight sum on the canvas.
func (b *Blender) MinWeight() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return floats.Min(b.weight)
}

// Result normalizes the canvas by the weight sums and clips to [0,1],
// returning a (1, C, H*scale, W*scale) tensor.
func (b *Blender) Result() (*tensor.Tensor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := floats.MinIdx(b.weight); b.weight[i] <= 0 {
		return nil, fmt.Errorf("%w: weight %g at (%d, %d)",
			ErrWeightUnderflow, b.weight[i], i/b.outW, i%b.outW)
	}

	out := tensor.New(1, b.channels, b.outH, b.outW)
	plane := b.outH * b.outW
	for c := 0; c < b.channels; c++ {
		acc := b.acc[c*plane : (c+1)*plane]
		dst := out.Plane(0, c)
		for i, v := range acc {
			dst[i] = float32(clip01(v / b.weight[i]))
		}
	}
	return out, nil
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
