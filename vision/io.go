package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Load reads and decodes an image file, applying its EXIF orientation.
func Load(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidImage, path, err)
	}
	return img, nil
}

// Save encodes img to path, choosing the format from the file extension.
func Save(img image.Image, path string) error {
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err := imaging.Save(img, path); err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		return fmt.Errorf("vision: save %s: %w", path, err)
	}
	return nil
}

// IsSupportedOutput reports whether path has an extension Save can encode.
func IsSupportedOutput(path string) bool {
	_, err := imaging.FormatFromFilename(path)
	return err == nil
}

var inputExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsSupportedInput reports whether path has an extension Load can decode.
func IsSupportedInput(path string) bool {
	return inputExtensions[strings.ToLower(filepath.Ext(path))]
}
