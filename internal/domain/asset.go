package domain

import (
	"fmt"
	"strings"
)

// Format is the container an asset is persisted in.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts the usual spellings and file extensions.
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), ".")) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, v)
	}
}

// Extension returns the canonical file extension including the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// SupportsAlpha reports whether the container keeps an alpha channel.
func (f Format) SupportsAlpha() bool {
	return f == FormatPNG
}

const (
	DefaultGenerateWidth  = 512
	DefaultGenerateHeight = 512
)

// AssetRequest describes one asset of a catalog. Build it with NewAssetRequest;
// the pipeline treats it as read-only.
type AssetRequest struct {
	Name           string
	Prompt         string
	NegativePrompt string
	Style          string
	ModelID        string
	// GenerateWidth/GenerateHeight are the dimensions asked from the service.
	GenerateWidth  int
	GenerateHeight int
	// Width/Height are the final sprite dimensions.
	Width        int
	Height       int
	Format       Format
	Matte        *MatteConfig
	Destinations []string
	// Source is the existing file a local reprocess reads. Empty means the
	// first destination.
	Source string
}

// SourcePath returns the file a reprocess of r starts from.
func (r AssetRequest) SourcePath() string {
	if r.Source != "" {
		return r.Source
	}
	if len(r.Destinations) > 0 {
		return r.Destinations[0]
	}
	return ""
}

// NewAssetRequest validates r and returns a copy that shares no slices or
// pointers with the input.
func NewAssetRequest(r AssetRequest) (AssetRequest, error) {
	out := r
	out.Name = strings.TrimSpace(r.Name)
	out.Prompt = strings.TrimSpace(r.Prompt)
	out.NegativePrompt = strings.TrimSpace(r.NegativePrompt)
	out.Style = strings.TrimSpace(r.Style)
	out.ModelID = strings.TrimSpace(r.ModelID)
	out.Source = strings.TrimSpace(r.Source)
	if out.Format == "" {
		out.Format = FormatPNG
	}
	if out.GenerateWidth == 0 {
		out.GenerateWidth = DefaultGenerateWidth
	}
	if out.GenerateHeight == 0 {
		out.GenerateHeight = DefaultGenerateHeight
	}
	out.Destinations = make([]string, 0, len(r.Destinations))
	for _, d := range r.Destinations {
		if d = strings.TrimSpace(d); d != "" {
			out.Destinations = append(out.Destinations, d)
		}
	}
	if r.Matte != nil {
		m := *r.Matte
		out.Matte = &m
	}

	switch {
	case out.Name == "":
		return AssetRequest{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case out.Prompt == "":
		return AssetRequest{}, fmt.Errorf("%w: %s: prompt is required", ErrInvalidRequest, out.Name)
	case out.Width <= 0 || out.Height <= 0:
		return AssetRequest{}, fmt.Errorf("%w: %s: target %dx%d", ErrInvalidDimensions, out.Name, out.Width, out.Height)
	case out.GenerateWidth <= 0 || out.GenerateHeight <= 0:
		return AssetRequest{}, fmt.Errorf("%w: %s: generation size %dx%d", ErrInvalidDimensions, out.Name, out.GenerateWidth, out.GenerateHeight)
	case len(out.Destinations) == 0:
		return AssetRequest{}, fmt.Errorf("%w: %s: at least one destination is required", ErrInvalidRequest, out.Name)
	}
	format, err := ParseFormat(string(out.Format))
	if err != nil {
		return AssetRequest{}, fmt.Errorf("%s: %w", out.Name, err)
	}
	out.Format = format
	if out.Matte != nil {
		if !out.Format.SupportsAlpha() {
			return AssetRequest{}, fmt.Errorf("%w: %s: matting requires a format with alpha, got %s", ErrInvalidRequest, out.Name, out.Format)
		}
		if err := out.Matte.Validate(); err != nil {
			return AssetRequest{}, fmt.Errorf("%s: %w", out.Name, err)
		}
	}
	return out, nil
}
