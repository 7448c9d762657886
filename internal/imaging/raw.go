// Package imaging holds the pixel-level stages of the sprite pipeline: the
// background matte, the nearest-neighbor resizer and the container codecs.
package imaging

import (
	"fmt"
	"image"
	"image/draw"

	"spritegen/internal/domain"
)

// RawImage is a non-premultiplied RGBA buffer, row-major, four bytes per pixel.
type RawImage struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRawImage allocates a fully transparent w×h image.
func NewRawImage(w, h int) (*RawImage, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", domain.ErrInvalidDimensions, w, h)
	}
	return &RawImage{Width: w, Height: h, Pix: make([]byte, w*h*4)}, nil
}

// Validate checks the buffer length against the declared dimensions.
func (m *RawImage) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil image", domain.ErrInvalidDimensions)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", domain.ErrInvalidDimensions, m.Width, m.Height)
	}
	if want := m.Width * m.Height * 4; len(m.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, want %d", domain.ErrInvalidDimensions, len(m.Pix), want)
	}
	return nil
}

func (m *RawImage) offset(x, y int) int {
	return (y*m.Width + x) * 4
}

// RGBA returns the pixel at (x, y).
func (m *RawImage) RGBA(x, y int) [4]byte {
	i := m.offset(x, y)
	return [4]byte{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

// Set writes the pixel at (x, y).
func (m *RawImage) Set(x, y int, px [4]byte) {
	i := m.offset(x, y)
	copy(m.Pix[i:i+4], px[:])
}

// Fill paints the rectangle [x0,x1)×[y0,y1), clipped to the image.
func (m *RawImage) Fill(x0, y0, x1, y1 int, px [4]byte) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, m.Width), min(y1, m.Height)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m.Set(x, y, px)
		}
	}
}

// Clone returns a deep copy.
func (m *RawImage) Clone() *RawImage {
	return &RawImage{Width: m.Width, Height: m.Height, Pix: append([]byte(nil), m.Pix...)}
}

// Equal reports whether both images have identical dimensions and bytes.
func (m *RawImage) Equal(o *RawImage) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Width != o.Width || m.Height != o.Height || len(m.Pix) != len(o.Pix) {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// FromImage converts any decoded image into a RawImage. Colours are converted
// to non-premultiplied RGBA so that alpha and RGB stay independent channels.
func FromImage(src image.Image) (*RawImage, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", domain.ErrInvalidDimensions, b.Dx(), b.Dy())
	}
	nrgba, ok := src.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != b.Dx()*4 {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	}
	return &RawImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    append([]byte(nil), nrgba.Pix[:b.Dx()*b.Dy()*4]...),
	}, nil
}

// NRGBA exposes the buffer as an image.Image without copying.
func (m *RawImage) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    m.Pix,
		Stride: m.Width * 4,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
}
