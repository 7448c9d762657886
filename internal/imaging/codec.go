package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	// Decoders registered for image.Decode.
	_ "image/gif"

	_ "golang.org/x/image/webp"

	"spritegen/internal/domain"
)

// JPEGQuality is used for lossy backgrounds and logos.
const JPEGQuality = 92

var pngEncoder = png.Encoder{CompressionLevel: png.BestCompression}

// Encode serializes m in the requested container. Encoding is deterministic:
// equal images always produce equal bytes.
func Encode(m *RawImage, format domain.Format) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch format {
	case domain.FormatPNG, "":
		if err := pngEncoder.Encode(&buf, m.NRGBA()); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, m.NRGBA(), &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("encode: unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

// ErrTooManyPixels is returned by DecodeLimited when the header declares
// more pixels than allowed.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// Decode parses PNG, JPEG, GIF or WebP bytes and returns the pixels together
// with the detected container name.
func Decode(data []byte) (*RawImage, string, error) {
	return DecodeLimited(data, 0)
}

// DecodeLimited is Decode that reads the header first and refuses images
// whose width*height exceeds maxPixels before any pixel buffer is allocated.
// A maxPixels of zero or less disables the check.
func DecodeLimited(data []byte, maxPixels int64) (*RawImage, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("decode: empty payload")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("decode: %w: %dx%d", domain.ErrInvalidDimensions, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("decode: %w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	raw, err := FromImage(img)
	if err != nil {
		return nil, "", err
	}
	return raw, name, nil
}
