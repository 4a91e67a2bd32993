package tiling

import (
	"errors"
	"reflect"
	"testing"
)

func TestOffsets(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		tile    int
		overlap int
		want    []int
	}{
		{"smaller than tile", 20, 128, 16, []int{0}},
		{"exactly one tile", 128, 128, 16, []int{0}},
		{"clamped last", 300, 128, 16, []int{0, 112, 172}},
		{"exact fit", 240, 128, 16, []int{0, 112}},
		{"no overlap", 10, 4, 0, []int{0, 4, 6}},
		{"stride one", 5, 3, 2, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Offsets(tt.dim, tt.tile, tt.overlap); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Offsets(%d, %d, %d) = %v, want %v", tt.dim, tt.tile, tt.overlap, got, tt.want)
			}
		})
	}
}

func TestScheduleInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		h, w    int
		tile    int
		overlap int
		want    error
	}{
		{"overlap equals tile", 100, 100, 64, 64, ErrInvalidConfig},
		{"overlap above tile", 100, 100, 64, 80, ErrInvalidConfig},
		{"negative overlap", 100, 100, 64, -1, ErrInvalidConfig},
		{"zero tile", 100, 100, 0, 0, ErrInvalidConfig},
		{"zero height", 0, 100, 64, 8, ErrEmptyImage},
		{"zero width", 100, 0, 64, 8, ErrEmptyImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiles, err := Schedule(tt.h, tt.w, tt.tile, tt.overlap)
			if !errors.Is(err, tt.want) {
				t.Errorf("Schedule() error = %v, want %v", err, tt.want)
			}
			if tiles != nil {
				t.Errorf("Schedule() returned %d tiles on error", len(tiles))
			}
		})
	}
}

func TestScheduleCoverage(t *testing.T) {
	for _, h := range []int{1, 7, 64, 65, 100, 300} {
		for _, w := range []int{1, 13, 64, 129, 257} {
			for _, cfg := range [][2]int{{64, 0}, {64, 8}, {32, 31}, {128, 16}, {16, 4}} {
				tile, overlap := cfg[0], cfg[1]
				tiles, err := Schedule(h, w, tile, overlap)
				if err != nil {
					t.Fatalf("Schedule(%d, %d, %d, %d) error: %v", h, w, tile, overlap, err)
				}

				covered := make([]int, h*w)
				for _, tl := range tiles {
					if tl.X0 < 0 || tl.Y0 < 0 || tl.X1 > w || tl.Y1 > h || tl.Width() <= 0 || tl.Height() <= 0 {
						t.Fatalf("%dx%d tile %d/%d: %v out of bounds", w, h, tile, overlap, tl)
					}
					if tl.Width() > tile || tl.Height() > tile {
						t.Fatalf("%dx%d tile %d/%d: %v larger than tile", w, h, tile, overlap, tl)
					}
					for y := tl.Y0; y < tl.Y1; y++ {
						for x := tl.X0; x < tl.X1; x++ {
							covered[y*w+x]++
						}
					}
				}
				for i, n := range covered {
					if n == 0 {
						t.Fatalf("%dx%d tile %d/%d: pixel (%d,%d) uncovered", w, h, tile, overlap, i%w, i/w)
					}
				}
			}
		}
	}
}

func TestScheduleOverlapBound(t *testing.T) {
	for _, dim := range []int{65, 100, 240, 300, 1000} {
		for _, cfg := range [][2]int{{64, 8}, {128, 16}, {32, 0}} {
			tile, overlap := cfg[0], cfg[1]
			offs := Offsets(dim, tile, overlap)
			for i := 1; i < len(offs); i++ {
				shared := offs[i-1] + tile - offs[i]
				last := i == len(offs)-1
				if !last && shared != overlap {
					t.Errorf("dim %d tile %d: regular overlap %d, want %d", dim, tile, shared, overlap)
				}
				if last && shared < overlap {
					t.Errorf("dim %d tile %d: clamped overlap %d below %d", dim, tile, shared, overlap)
				}
			}
		}
	}
}

func TestScheduleRowMajor(t *testing.T) {
	tiles, err := Schedule(300, 300, 128, 16)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if len(tiles) != 9 {
		t.Fatalf("Schedule() = %d tiles, want 9", len(tiles))
	}
	want := []Tile{{0, 0, 128, 128}, {112, 0, 240, 128}, {172, 0, 300, 128}}
	if !reflect.DeepEqual(tiles[:3], want) {
		t.Errorf("first row = %v, want %v", tiles[:3], want)
	}
	if tiles[3].Y0 != 112 || tiles[3].X0 != 0 {
		t.Errorf("second row starts at %v", tiles[3])
	}
}

func TestScheduleSingleTile(t *testing.T) {
	tiles, err := Schedule(20, 20, 128, 16)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if len(tiles) != 1 || tiles[0] != (Tile{0, 0, 20, 20}) {
		t.Errorf("Schedule() = %v, want one 20x20 tile", tiles)
	}
}
