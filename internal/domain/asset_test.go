package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() AssetRequest {
	return AssetRequest{
		Name:         " coin ",
		Prompt:       " gold coin ",
		Width:        16,
		Height:       16,
		Destinations: []string{"public/coin.png", " ", "src/assets/coin.png"},
	}
}

func TestNewAssetRequestDefaults(t *testing.T) {
	req, err := NewAssetRequest(validRequest())
	require.NoError(t, err)

	assert.Equal(t, "coin", req.Name)
	assert.Equal(t, "gold coin", req.Prompt)
	assert.Equal(t, FormatPNG, req.Format)
	assert.Equal(t, DefaultGenerateWidth, req.GenerateWidth)
	assert.Equal(t, DefaultGenerateHeight, req.GenerateHeight)
	assert.Equal(t, []string{"public/coin.png", "src/assets/coin.png"}, req.Destinations)
}

func TestNewAssetRequestCopies(t *testing.T) {
	in := validRequest()
	in.Matte = &MatteConfig{Tolerance: 30}
	req, err := NewAssetRequest(in)
	require.NoError(t, err)

	in.Destinations[0] = "elsewhere.png"
	in.Matte.Tolerance = 99
	assert.Equal(t, "public/coin.png", req.Destinations[0])
	assert.Equal(t, uint8(30), req.Matte.Tolerance)
}

func TestSourcePath(t *testing.T) {
	req, err := NewAssetRequest(validRequest())
	require.NoError(t, err)
	assert.Equal(t, "public/coin.png", req.SourcePath())

	in := validRequest()
	in.Source = " raw/coin.png "
	req, err = NewAssetRequest(in)
	require.NoError(t, err)
	assert.Equal(t, "raw/coin.png", req.SourcePath())

	assert.Empty(t, AssetRequest{}.SourcePath())
}

func TestNewAssetRequestNormalizesFormat(t *testing.T) {
	in := validRequest()
	in.Format = "JPG"
	req, err := NewAssetRequest(in)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, req.Format)
	assert.Equal(t, ".jpg", req.Format.Extension())
}

func TestNewAssetRequestRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AssetRequest)
		want   error
	}{
		{"no name", func(r *AssetRequest) { r.Name = "" }, ErrInvalidRequest},
		{"no prompt", func(r *AssetRequest) { r.Prompt = "  " }, ErrInvalidRequest},
		{"zero width", func(r *AssetRequest) { r.Width = 0 }, ErrInvalidDimensions},
		{"negative height", func(r *AssetRequest) { r.Height = -4 }, ErrInvalidDimensions},
		{"negative generation size", func(r *AssetRequest) { r.GenerateWidth = -1 }, ErrInvalidDimensions},
		{"no destinations", func(r *AssetRequest) { r.Destinations = []string{" "} }, ErrInvalidRequest},
		{"bad format", func(r *AssetRequest) { r.Format = "gif" }, ErrInvalidRequest},
		{"matte on jpeg", func(r *AssetRequest) {
			r.Format = FormatJPEG
			r.Matte = &MatteConfig{Tolerance: 10}
		}, ErrInvalidRequest},
		{"bad sample mode", func(r *AssetRequest) { r.Matte = &MatteConfig{Sample: "diagonal"} }, ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := validRequest()
			tc.mutate(&r)
			_, err := NewAssetRequest(r)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseSampleMode(t *testing.T) {
	m, err := ParseSampleMode("Four-Corners")
	require.NoError(t, err)
	assert.Equal(t, SampleFourCorners, m)

	m, err = ParseSampleMode("")
	require.NoError(t, err)
	assert.Equal(t, SampleTopLeft, m)

	_, err = ParseSampleMode("center")
	require.ErrorIs(t, err, ErrInvalidRequest)
}
