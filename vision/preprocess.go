// Package vision converts between decoded images and the float tensors that
// inference models consume.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go_imgutils/tensor"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image preprocessing errors
var (
	ErrInvalidImage      = errors.New("vision: invalid image data")
	ErrUnsupportedFormat = errors.New("vision: unsupported image format")
	ErrInvalidDimensions = errors.New("vision: invalid dimensions")
	ErrEmptyImage        = errors.New("vision: empty image data")
	ErrInvalidColor      = errors.New("vision: invalid color")
)

// DecodeImage decodes image data from PNG, JPEG, GIF, BMP, TIFF or WebP.
// This is a pure function with no side effects.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, nil
}

// Resize scales an image to exactly width x height with bilinear filtering,
// ignoring aspect ratio.
func Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

// ConvertToNRGBA returns img as non-premultiplied RGBA. NRGBA inputs are
// returned as-is.
func ConvertToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// NormalizeCHW encodes the RGB channels of img as a (1, 3, H, W) tensor with
// (v/255 - mean) / std per channel. Alpha is ignored.
func NormalizeCHW(img image.Image, mean, std float32) (*tensor.Tensor, error) {
	if std == 0 {
		return nil, fmt.Errorf("%w: zero standard deviation", ErrInvalidDimensions)
	}
	t := ToTensor(ConvertToNRGBA(img))
	for i, v := range t.Data {
		t.Data[i] = (v - mean) / std
	}
	return t, nil
}

// PreprocessImage decodes data, resizes it to size x size and normalizes it.
// This composes atomic functions into a single convenience function.
func PreprocessImage(data []byte, size int, mean, std float32) (*tensor.Tensor, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	resized, err := Resize(img, size, size)
	if err != nil {
		return nil, err
	}

	return NormalizeCHW(resized, mean, std)
}
