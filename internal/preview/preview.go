// Package preview writes generated surfaces as PNG images.
package preview

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"celestial/internal/surface"
)

// TextureImage converts an RGB texture buffer into an opaque image.
func TextureImage(desc *surface.Description) (*image.NRGBA, error) {
	if err := checkDescription(desc); err != nil {
		return nil, err
	}
	if len(desc.TextureBytes) != 3*desc.Width*desc.Height {
		return nil, fmt.Errorf("texture has %d bytes, want %d", len(desc.TextureBytes), 3*desc.Width*desc.Height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	for i := 0; i < desc.Width*desc.Height; i++ {
		px := desc.TextureBytes[3*i : 3*i+3]
		img.Pix[4*i] = px[0]
		img.Pix[4*i+1] = px[1]
		img.Pix[4*i+2] = px[2]
		img.Pix[4*i+3] = 255
	}
	return img, nil
}

// ElevationImage renders the field as grayscale, stretched so the minimum
// elevation is black and the maximum white.
func ElevationImage(desc *surface.Description) (*image.Gray, error) {
	if err := checkDescription(desc); err != nil {
		return nil, err
	}
	if len(desc.Elevations) != desc.Width*desc.Height {
		return nil, fmt.Errorf("field has %d elevations, want %d", len(desc.Elevations), desc.Width*desc.Height)
	}

	img := image.NewGray(image.Rect(0, 0, desc.Width, desc.Height))
	span := desc.Max - desc.Min
	for i, e := range desc.Elevations {
		var v float64
		if span > 0 {
			v = (e - desc.Min) / span
		}
		img.Pix[i] = uint8(v*255 + 0.5)
	}
	return img, nil
}

func checkDescription(desc *surface.Description) error {
	if desc == nil {
		return fmt.Errorf("surface is nil")
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return fmt.Errorf("invalid surface dimensions %dx%d", desc.Width, desc.Height)
	}
	return nil
}

// EncodeTexture writes the texture as PNG to w.
func EncodeTexture(w io.Writer, desc *surface.Description) error {
	img, err := TextureImage(desc)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode texture: %w", err)
	}
	return nil
}

// EncodeElevation writes the grayscale elevation map as PNG to w.
func EncodeElevation(w io.Writer, desc *surface.Description) error {
	img, err := ElevationImage(desc)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode elevation: %w", err)
	}
	return nil
}

// SaveTexture writes the texture PNG to path, creating parent directories.
func SaveTexture(path string, desc *surface.Description) error {
	return save(path, desc, EncodeTexture)
}

// SaveElevation writes the elevation PNG to path, creating parent directories.
func SaveElevation(path string, desc *surface.Description) error {
	return save(path, desc, EncodeElevation)
}

func save(path string, desc *surface.Description, encode func(io.Writer, *surface.Description) error) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preview directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	if err := encode(file, desc); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
