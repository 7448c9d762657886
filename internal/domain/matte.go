package domain

import (
	"fmt"
	"strings"
)

// SampleMode selects where background reference colours are read from.
type SampleMode string

const (
	SampleTopLeft     SampleMode = "top_left"
	SampleFourCorners SampleMode = "four_corners"
)

// ParseSampleMode maps catalog spellings onto a SampleMode.
func ParseSampleMode(v string) (SampleMode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "top_left", "top-left", "corner", "single":
		return SampleTopLeft, nil
	case "four_corners", "four-corners", "corners", "all":
		return SampleFourCorners, nil
	default:
		return "", fmt.Errorf("%w: unknown matte sample mode %q", ErrInvalidRequest, v)
	}
}

// MatteConfig parameterizes background removal for a single invocation.
//
// A pixel is background when every RGB channel differs from a reference
// colour by strictly less than Tolerance, or when AlphaFloor is non-zero and
// the pixel alpha is below it.
type MatteConfig struct {
	Tolerance  uint8
	AlphaFloor uint8
	Sample     SampleMode
}

// Validate checks the sample mode; numeric fields are range-safe by type.
func (c MatteConfig) Validate() error {
	switch c.Sample {
	case "", SampleTopLeft, SampleFourCorners:
		return nil
	default:
		return fmt.Errorf("%w: unknown matte sample mode %q", ErrInvalidRequest, c.Sample)
	}
}
