// Package alpha separates transparency from color before inference and
// reattaches it afterwards. Models only see opaque RGB; the mask travels
// around them and is resized to the output resolution.
package alpha

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"go_imgutils/tensor"
	"go_imgutils/vision"

	"golang.org/x/image/draw"
)

// ErrUnsupportedChannelLayout is returned for images that are not 1, 3 or 4 channel.
var ErrUnsupportedChannelLayout = errors.New("alpha: unsupported channel layout")

// Interpolation selects how the mask is resized.
type Interpolation int

const (
	Linear Interpolation = iota
	Nearest
)

// String returns "linear" or "nearest".
func (i Interpolation) String() string {
	switch i {
	case Linear:
		return "linear"
	case Nearest:
		return "nearest"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// Validate reports whether i is a known policy.
func (i Interpolation) Validate() error {
	if i != Linear && i != Nearest {
		return fmt.Errorf("alpha: unknown interpolation %d", int(i))
	}
	return nil
}

// ParseInterpolation accepts "nearest" or "linear" (case-insensitive; empty means linear).
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear", "bilinear":
		return Linear, nil
	case "nearest":
		return Nearest, nil
	default:
		return Linear, fmt.Errorf("alpha: unknown interpolation %q", s)
	}
}

func (i Interpolation) scaler() draw.Scaler {
	if i == Nearest {
		return draw.NearestNeighbor
	}
	return draw.BiLinear
}

// Mask is an 8-bit transparency plane.
type Mask struct {
	img *image.Alpha
}

// NewMask wraps an alpha image. The bounds are normalized to start at the origin.
func NewMask(a *image.Alpha) *Mask {
	if a.Rect.Min != (image.Point{}) {
		dst := image.NewAlpha(image.Rect(0, 0, a.Rect.Dx(), a.Rect.Dy()))
		draw.Draw(dst, dst.Bounds(), a, a.Rect.Min, draw.Src)
		a = dst
	}
	return &Mask{img: a}
}

// Width returns the mask width.
func (m *Mask) Width() int { return m.img.Rect.Dx() }

// Height returns the mask height.
func (m *Mask) Height() int { return m.img.Rect.Dy() }

// Value returns the opacity at (x, y) in [0,1].
func (m *Mask) Value(x, y int) float32 {
	return float32(m.img.AlphaAt(x, y).A) / 255
}

// Image returns the underlying alpha image.
func (m *Mask) Image() *image.Alpha { return m.img }

// Resize returns the mask scaled to width x height. The receiver is
// returned when the size already matches.
func (m *Mask) Resize(width, height int, interp Interpolation) *Mask {
	if width == m.Width() && height == m.Height() {
		return m
	}
	dst := image.NewAlpha(image.Rect(0, 0, width, height))
	interp.scaler().Scale(dst, dst.Bounds(), m.img, m.img.Bounds(), draw.Src, nil)
	return &Mask{img: dst}
}

// Split composites img over background into a (1, 3, H, W) tensor in [0,1].
// The mask is nil when img carries no transparency; grayscale is expanded
// to three channels. CMYK and alpha-only images are rejected.
func Split(img image.Image, background color.Color) (*tensor.Tensor, *Mask, error) {
	channels := vision.ChannelCount(img)
	if channels == 0 {
		return nil, nil, fmt.Errorf("%w: color model %T", ErrUnsupportedChannelLayout, img.ColorModel())
	}

	nrgba := vision.ConvertToNRGBA(img)
	if channels != 4 {
		return vision.ToTensor(nrgba), nil, nil
	}
	return composite(nrgba.Pix, nrgba.Stride, 4, nrgba.Rect.Dx(), nrgba.Rect.Dy(), background)
}

// SplitPixels is Split for a tightly packed interleaved 8-bit buffer with
// 1 (gray), 3 (RGB) or 4 (RGBA, non-premultiplied) channels.
func SplitPixels(pix []uint8, channels, width, height int, background color.Color) (*tensor.Tensor, *Mask, error) {
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, nil, fmt.Errorf("%w: %d channels", ErrUnsupportedChannelLayout, channels)
	}
	if width <= 0 || height <= 0 || len(pix) != width*height*channels {
		return nil, nil, fmt.Errorf("%w: %d bytes for %dx%dx%d",
			vision.ErrInvalidDimensions, len(pix), width, height, channels)
	}
	return composite(pix, width*channels, channels, width, height, background)
}

func composite(pix []uint8, stride, channels, width, height int, background color.Color) (*tensor.Tensor, *Mask, error) {
	bg := color.NRGBAModel.Convert(background).(color.NRGBA)
	bgv := [3]float32{float32(bg.R) / 255, float32(bg.G) / 255, float32(bg.B) / 255}

	t := tensor.New(1, 3, height, width)
	var mask *image.Alpha
	if channels == 4 {
		mask = image.NewAlpha(image.Rect(0, 0, width, height))
	}

	for y := 0; y < height; y++ {
		row := pix[y*stride:]
		for x := 0; x < width; x++ {
			px := row[x*channels : (x+1)*channels]
			var rgb [3]float32
			if channels == 1 {
				v := float32(px[0]) / 255
				rgb = [3]float32{v, v, v}
			} else {
				rgb = [3]float32{float32(px[0]) / 255, float32(px[1]) / 255, float32(px[2]) / 255}
			}
			if channels == 4 {
				a := float32(px[3]) / 255
				for c := range rgb {
					rgb[c] = a*rgb[c] + (1-a)*bgv[c]
				}
				mask.Pix[y*mask.Stride+x] = px[3]
			}
			for c := range rgb {
				t.Set(0, c, y, x, rgb[c])
			}
		}
	}

	if mask == nil {
		return t, nil, nil
	}
	return t, &Mask{img: mask}, nil
}

// Recombine attaches mask as the transparency of rgb, resizing it to rgb's
// size first. A nil mask returns rgb unchanged.
func Recombine(rgb *image.NRGBA, mask *Mask, interp Interpolation) image.Image {
	if mask == nil {
		return rgb
	}

	rgb = vision.ConvertToNRGBA(rgb)
	w, h := rgb.Rect.Dx(), rgb.Rect.Dy()
	m := mask.Resize(w, h, interp)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		dst := out.Pix[y*out.Stride : y*out.Stride+w*4]
		copy(dst, rgb.Pix[y*rgb.Stride:y*rgb.Stride+w*4])
		for x := 0; x < w; x++ {
			dst[x*4+3] = m.img.Pix[y*m.img.Stride+x]
		}
	}
	return out
}
