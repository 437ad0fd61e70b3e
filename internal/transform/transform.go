// Package transform fits downloaded images to the display resolution.
package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrSourceTooSmall is returned when the source is smaller than the target on
// either axis. The image must not be saved.
var ErrSourceTooSmall = errors.New("source image smaller than target resolution")

// Resolution is a width/height pair in pixels.
type Resolution struct {
	Width  int `toml:"width"  json:"width"`
	Height int `toml:"height" json:"height"`
}

// String formats the resolution as WxH.
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// IsZero reports whether either dimension is unset.
func (r Resolution) IsZero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ScaleAndCrop scales src to cover width x height with a Lanczos filter, then
// crops the center so the result is exactly width x height.
func ScaleAndCrop(src image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target resolution %dx%d", width, height)
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW < width || srcH < height {
		return nil, fmt.Errorf("%w: %dx%d < %dx%d", ErrSourceTooSmall, srcW, srcH, width, height)
	}

	scale := math.Max(float64(width)/float64(srcW), float64(height)/float64(srcH))
	scaledW := max(int(float64(srcW)*scale), width)
	scaledH := max(int(float64(srcH)*scale), height)

	scaled := imaging.Resize(src, scaledW, scaledH, imaging.Lanczos)

	left := (scaledW - width) / 2
	top := (scaledH - height) / 2
	return imaging.Crop(scaled, image.Rect(left, top, left+width, top+height)), nil
}

// Decode decodes PNG, JPEG or WebP data, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// SavePNG encodes img as PNG at path, creating the parent directory.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
