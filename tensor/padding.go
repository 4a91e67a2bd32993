package tensor

// Padding describes how far a tensor's spatial extent must grow before it is
// handed to a model. Paddings compose: each one is applied to the output of
// the previous, and a single top-left crop afterwards undoes all of them.
type Padding interface {
	// Target returns the padded height and width for an h x w input.
	Target(h, w int) (int, int)
}

// ToSize grows the extent up to a fixed size. Larger inputs are left unchanged.
type ToSize struct {
	H, W int
}

// Target implements Padding.
func (p ToSize) Target(h, w int) (int, int) {
	return max(h, p.H), max(w, p.W)
}

// ToMultiple grows each axis to the next multiple of Unit. Unit <= 1 is a no-op.
type ToMultiple struct {
	Unit int
}

// Target implements Padding.
func (p ToMultiple) Target(h, w int) (int, int) {
	return AlignUp(h, p.Unit), AlignUp(w, p.Unit)
}

// AlignUp rounds size up to a multiple of unit.
func AlignUp(size, unit int) int {
	if unit <= 1 || size%unit == 0 {
		return size
	}
	return size + unit - size%unit
}

// Pad applies each padding in order using reflection and returns the result.
// The input is returned as-is when no padding changes its extent.
func Pad(t *Tensor, paddings ...Padding) *Tensor {
	out := t
	for _, p := range paddings {
		h, w := p.Target(out.H, out.W)
		out = ReflectPad(out, h, w)
	}
	return out
}

// ReflectPad extends every sample to h x w by mirroring across the bottom and
// right edges, excluding the edge pixel itself (numpy "reflect" mode). Pads
// longer than the source wrap around repeatedly. A one-pixel axis is
// replicated instead since it has nothing to reflect.
func ReflectPad(t *Tensor, h, w int) *Tensor {
	if h <= t.H && w <= t.W {
		return t
	}
	h, w = max(h, t.H), max(w, t.W)

	cols := make([]int, w)
	for x := range cols {
		cols[x] = reflectIndex(x, t.W)
	}

	out := New(t.N, t.C, h, w)
	for n := 0; n < t.N; n++ {
		for c := 0; c < t.C; c++ {
			for y := 0; y < h; y++ {
				src := t.Row(n, c, reflectIndex(y, t.H))
				dst := out.Row(n, c, y)
				copy(dst, src)
				for x := t.W; x < w; x++ {
					dst[x] = src[cols[x]]
				}
			}
		}
	}
	return out
}

// reflectIndex maps i in [0, inf) onto [0, n) by repeated mirroring.
func reflectIndex(i, n int) int {
	if i < n {
		return i
	}
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	m := i % period
	if m >= n {
		m = period - m
	}
	return m
}
