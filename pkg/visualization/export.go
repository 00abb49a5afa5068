// Package visualization renders reconstruction results for inspection:
// grayscale exports of images and sinograms, and line plots of the
// convergence traces. Everything here is a read-only consumer of the
// iteration outputs; nothing feeds back into the algorithms.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"tomosparse/pkg/tomo"
)

// SaveImagePNG writes an image-space array as a normalized 16-bit grayscale
// PNG. The value range is stretched to full scale; a constant array renders
// as black.
func SaveImagePNG(img tomo.Image, path string) error {
	return saveGrayPNG(img.Data, img.Grid.Width, img.Grid.Height, path)
}

// SaveSinogramPNG writes a sinogram as a normalized grayscale PNG with one
// row per projection angle.
func SaveSinogramPNG(s tomo.Sinogram, path string) error {
	return saveGrayPNG(s.Data, s.Grid.Width, s.Grid.Height, path)
}

func saveGrayPNG(data []float64, width, height int, path string) error {
	if len(data) != width*height {
		return fmt.Errorf("visualization: data length %d does not match %dx%d", len(data), width, height)
	}

	min, max := data[0], data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	scale := 0.0
	if max > min {
		scale = 65535.0 / (max - min)
	}

	out := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			value := uint16((data[y*width+x] - min) * scale)
			out.SetGray16(x, y, color.Gray16{Y: value})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("visualization: failed to create output directory: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("visualization: failed to create image file: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, out); err != nil {
		return fmt.Errorf("visualization: failed to encode image: %v", err)
	}
	return nil
}
