package tiling

// ramp is a 1-D blending profile over one tile axis in output pixels.
// The weight map of a tile is the outer product of its row and column ramps.
type ramp []float64

// newRamp builds a profile of the given length that fades over fade pixels at
// each edge marked as shared with a neighbouring tile. Edges on the image
// border stay at 1 since nothing else covers them. Every value is strictly
// positive: pixel i of a fade weighs (i+0.5)/fade, so two opposite fades
// over the same overlap sum to exactly 1.
func newRamp(length, fade int, fadeStart, fadeEnd bool) ramp {
	r := make(ramp, length)
	for i := range r {
		v := 1.0
		if fade > 0 {
			if fadeStart {
				v = min(v, (float64(i)+0.5)/float64(fade))
			}
			if fadeEnd {
				v = min(v, (float64(length-1-i)+0.5)/float64(fade))
			}
		}
		r[i] = v
	}
	return r
}

// rampSet caches the four edge variants of a ramp for one tile size.
type rampSet struct {
	variants [4]ramp
}

func newRampSet(length, fade int) *rampSet {
	s := &rampSet{}
	for i := range s.variants {
		s.variants[i] = newRamp(length, fade, i&1 != 0, i&2 != 0)
	}
	return s
}

// get returns the ramp for a tile spanning [start,end) on an axis of length dim.
func (s *rampSet) get(start, end, dim int) ramp {
	i := 0
	if start > 0 {
		i |= 1
	}
	if end < dim {
		i |= 2
	}
	return s.variants[i]
}

// WeightMap returns the full (size x size) blending weights of a tile, in
// output pixels, for inspection and tests. The blender never materialises
// it; it multiplies the row and column ramps on the fly.
func WeightMap(t Tile, imgH, imgW, tileSize, overlap, scale int) [][]float64 {
	set := newRampSet(tileSize*scale, overlap*scale)
	ry := set.get(t.Y0, t.Y1, imgH)
	rx := set.get(t.X0, t.X1, imgW)
	m := make([][]float64, len(ry))
	for y := range m {
		m[y] = make([]float64, len(rx))
		for x := range m[y] {
			m[y][x] = ry[y] * rx[x]
		}
	}
	return m
}
