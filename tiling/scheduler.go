package tiling

import "fmt"

// Tile is a rectangle [X0,X1) x [Y0,Y1) in source-image coordinates.
type Tile struct {
	X0, Y0, X1, Y1 int
}

// Width returns X1-X0.
func (t Tile) Width() int { return t.X1 - t.X0 }

// Height returns Y1-Y0.
func (t Tile) Height() int { return t.Y1 - t.Y0 }

func (t Tile) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", t.Y0, t.Y1, t.X0, t.X1)
}

// ValidateGrid checks tile size and overlap.
func ValidateGrid(tileSize, overlap int) error {
	if tileSize <= 0 {
		return fmt.Errorf("%w: tile size %d must be positive", ErrInvalidConfig, tileSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: tile overlap %d must not be negative", ErrInvalidConfig, overlap)
	}
	if overlap >= tileSize {
		return fmt.Errorf("%w: tile overlap %d must be less than tile size %d",
			ErrInvalidConfig, overlap, tileSize)
	}
	return nil
}

// Offsets returns the tile start positions along one axis of length dim.
// Starts advance by tileSize-overlap; the last start is clamped so the final
// tile ends exactly at dim. An axis no longer than one tile has the single
// offset 0.
func Offsets(dim, tileSize, overlap int) []int {
	if dim <= tileSize {
		return []int{0}
	}
	stride := tileSize - overlap
	var offsets []int
	for off := 0; ; off += stride {
		if off+tileSize >= dim {
			offsets = append(offsets, dim-tileSize)
			break
		}
		offsets = append(offsets, off)
	}
	return offsets
}

// Schedule returns the row-major tile grid covering an h x w image.
// The union of the tiles is exactly [0,h) x [0,w), no tile leaves the image,
// and regular neighbours overlap by exactly overlap pixels. The clamped last
// tile on an axis may overlap its neighbour by more.
func Schedule(h, w, tileSize, overlap int) ([]Tile, error) {
	if err := ValidateGrid(tileSize, overlap); err != nil {
		return nil, err
	}
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, w, h)
	}

	rows := Offsets(h, tileSize, overlap)
	cols := Offsets(w, tileSize, overlap)
	tiles := make([]Tile, 0, len(rows)*len(cols))
	for _, y := range rows {
		for _, x := range cols {
			tiles = append(tiles, Tile{
				X0: x,
				Y0: y,
				X1: min(x+tileSize, w),
				Y1: min(y+tileSize, h),
			})
		}
	}
	return tiles, nil
}
