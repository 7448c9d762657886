package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spritegen/internal/domain"
)

const sampleYAML = `
defaults:
  model_id: model-x
  style: DYNAMIC
  negative_prompt: blurry
  prompt_suffix: pixel art, white background
  generate: {width: 512, height: 512}
  transparent: true
  matte:
    tolerance: 40
  destinations:
    - public/sprites/{slug}{ext}
    - src/assets/sprites/{slug}{ext}
assets:
  - name: Wet Cat Stand
    prompt: a wet cat standing
    size: {width: 64, height: 80}
  - name: coin
    prompt: a gold coin
    size: {width: 16, height: 16}
    matte: {sample: top_left, alpha_floor: 0}
    source: raw/{slug}_original{ext}
  - name: Background
    prompt: rainy city
    size: {width: 320, height: 180}
    format: jpeg
    transparent: false
    destinations: [public/bg.jpg]
`

func TestRequestsApplyDefaults(t *testing.T) {
	c, err := Parse([]byte(sampleYAML), "yaml")
	require.NoError(t, err)

	reqs, err := c.Requests()
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	cat := reqs[0]
	assert.Equal(t, "Wet Cat Stand", cat.Name)
	assert.Equal(t, "a wet cat standing, pixel art, white background", cat.Prompt)
	assert.Equal(t, "blurry", cat.NegativePrompt)
	assert.Equal(t, "model-x", cat.ModelID)
	assert.Equal(t, "DYNAMIC", cat.Style)
	assert.Equal(t, 64, cat.Width)
	assert.Equal(t, 80, cat.Height)
	assert.Equal(t, 512, cat.GenerateWidth)
	assert.Equal(t, []string{"public/sprites/wet_cat_stand.png", "src/assets/sprites/wet_cat_stand.png"}, cat.Destinations)
	require.NotNil(t, cat.Matte)
	assert.Equal(t, domain.MatteConfig{Tolerance: 40, AlphaFloor: 50, Sample: domain.SampleFourCorners}, *cat.Matte)

	coin := reqs[1]
	require.NotNil(t, coin.Matte)
	assert.Equal(t, domain.MatteConfig{Tolerance: 40, AlphaFloor: 0, Sample: domain.SampleTopLeft}, *coin.Matte)
	assert.Equal(t, "raw/coin_original.png", coin.SourcePath())
	assert.Equal(t, "public/sprites/wet_cat_stand.png", cat.SourcePath())

	bg := reqs[2]
	assert.Nil(t, bg.Matte)
	assert.Equal(t, domain.FormatJPEG, bg.Format)
	assert.Equal(t, []string{"public/bg.jpg"}, bg.Destinations)
}

func TestRequestsCollectErrors(t *testing.T) {
	c, err := Parse([]byte(`
assets:
  - name: ok
    prompt: fine
    size: {width: 8, height: 8}
  - name: tiny
    prompt: broken
    size: {width: 0, height: 8}
  - name: ok
    prompt: again
    size: {width: 8, height: 8}
  - name: opaque
    prompt: jpeg with alpha
    size: {width: 8, height: 8}
    format: jpeg
    transparent: true
  - name: loud
    prompt: x
    size: {width: 8, height: 8}
    matte: {tolerance: 300}
`), "yaml")
	require.NoError(t, err)

	reqs, err := c.Requests()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidDimensions)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"ok.png"}, reqs[0].Destinations)
	assert.Nil(t, reqs[0].Matte)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("assets:\n  - name: a\n    colour: red\n"), "yaml")
	require.Error(t, err)

	_, err = Parse([]byte(`{"assets":[{"name":"a","colour":"red"}]}`), "json")
	require.Error(t, err)

	_, err = Parse([]byte("x"), "toml")
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"assets":[{"name":"Gem","prompt":"blue gem","size":{"width":16,"height":16}}]}`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	reqs, err := c.Requests()
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"gem.png"}, reqs[0].Destinations)

	_, err = LoadFile(filepath.Join(dir, "catalog.txt"))
	require.Error(t, err)
}

func TestSelect(t *testing.T) {
	reqs := []domain.AssetRequest{{Name: "Wet Cat Stand"}, {Name: "coin"}, {Name: "wallet"}}

	assert.Len(t, Select(reqs, nil), 3)
	got := Select(reqs, []string{"wallet", "wet_cat_stand"})
	require.Len(t, got, 2)
	assert.Equal(t, "Wet Cat Stand", got[0].Name)
	assert.Equal(t, "wallet", got[1].Name)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"coin":            "coin",
		"Wet Cat Stand":   "wet_cat_stand",
		"  Crème Brûlée ": "creme_brulee",
		"walk-1":          "walk_1",
		"__hero__":        "hero",
		"！！":              "asset",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}
