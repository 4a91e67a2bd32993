package vision

import (
	"image"
	"image/color"
	"math"

	"go_imgutils/tensor"
)

// ChannelCount reports the color layout of img: 1 for grayscale, 3 for opaque
// color and 4 for color with transparency. Layouts the pipeline cannot
// represent (CMYK, alpha-only) report 0.
func ChannelCount(img image.Image) int {
	switch im := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.CMYK, *image.Alpha, *image.Alpha16:
		return 0
	case *image.YCbCr:
		return 3
	case interface{ Opaque() bool }:
		if im.Opaque() {
			return 3
		}
		return 4
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.CMYKModel, color.AlphaModel, color.Alpha16Model:
		return 0
	case color.YCbCrModel:
		return 3
	}
	return 4
}

// ToTensor encodes the RGB channels of img as a (1, 3, H, W) tensor in [0,1].
func ToTensor(img *image.NRGBA) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := tensor.New(1, 3, h, w)
	r, g, bl := t.Plane(0, 0), t.Plane(0, 1), t.Plane(0, 2)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			r[i] = float32(row[x*4]) / 255
			g[i] = float32(row[x*4+1]) / 255
			bl[i] = float32(row[x*4+2]) / 255
		}
	}
	return t
}

// ToByte converts a [0,1] value to 8 bits, rounding to nearest and
// saturating at 0 and 255.
func ToByte(v float32) uint8 {
	f := math.Round(float64(v) * 255)
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}

// ToNRGBA decodes sample 0 of a (N, C, H, W) tensor into an opaque image.
// One channel is replicated to gray; three channels map to RGB.
func ToNRGBA(t *tensor.Tensor) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.W, t.H))
	planes := make([][]float32, 3)
	for c := range planes {
		planes[c] = t.Plane(0, min(c, t.C-1))
	}
	for y := 0; y < t.H; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < t.W; x++ {
			i := y*t.W + x
			row[x*4] = ToByte(planes[0][i])
			row[x*4+1] = ToByte(planes[1][i])
			row[x*4+2] = ToByte(planes[2][i])
			row[x*4+3] = 255
		}
	}
	return img
}
