// Package catalog loads asset catalogs from YAML or JSON files and turns
// them into validated asset requests.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"spritegen/internal/domain"
)

// DefaultMatte is the starting point for assets that ask for transparency.
var DefaultMatte = domain.MatteConfig{Tolerance: 30, AlphaFloor: 50, Sample: domain.SampleFourCorners}

// DefaultDestination is used when neither the asset nor the defaults name one.
const DefaultDestination = "{slug}{ext}"

type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

type Matte struct {
	Tolerance  *int   `yaml:"tolerance" json:"tolerance"`
	AlphaFloor *int   `yaml:"alpha_floor" json:"alpha_floor"`
	Sample     string `yaml:"sample" json:"sample"`
}

// Defaults apply to every asset that leaves the field unset.
type Defaults struct {
	ModelID        string   `yaml:"model_id" json:"model_id"`
	Style          string   `yaml:"style" json:"style"`
	NegativePrompt string   `yaml:"negative_prompt" json:"negative_prompt"`
	PromptSuffix   string   `yaml:"prompt_suffix" json:"prompt_suffix"`
	Generate       *Size    `yaml:"generate" json:"generate"`
	Format         string   `yaml:"format" json:"format"`
	Transparent    *bool    `yaml:"transparent" json:"transparent"`
	Matte          *Matte   `yaml:"matte" json:"matte"`
	Destinations   []string `yaml:"destinations" json:"destinations"`
}

type Asset struct {
	Name           string   `yaml:"name" json:"name"`
	Prompt         string   `yaml:"prompt" json:"prompt"`
	NegativePrompt string   `yaml:"negative_prompt" json:"negative_prompt"`
	Style          string   `yaml:"style" json:"style"`
	ModelID        string   `yaml:"model_id" json:"model_id"`
	Size           Size     `yaml:"size" json:"size"`
	Generate       *Size    `yaml:"generate" json:"generate"`
	Format         string   `yaml:"format" json:"format"`
	Transparent    *bool    `yaml:"transparent" json:"transparent"`
	Matte          *Matte   `yaml:"matte" json:"matte"`
	Destinations   []string `yaml:"destinations" json:"destinations"`
	// Source names the file a reprocess starts from; it accepts the same
	// placeholders as destinations.
	Source string `yaml:"source" json:"source"`
}

type Catalog struct {
	Defaults Defaults `yaml:"defaults" json:"defaults"`
	Assets   []Asset  `yaml:"assets" json:"assets"`
}

// LoadFile reads a catalog, detecting the format from the file extension.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Parse(data, "yaml")
	case ".json":
		return Parse(data, "json")
	default:
		return nil, fmt.Errorf("catalog: unsupported file extension %q", filepath.Ext(path))
	}
}

// Parse decodes a catalog. Unknown keys are rejected.
func Parse(data []byte, format string) (*Catalog, error) {
	var c Catalog
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog: parse yaml: %w", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("catalog: parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("catalog: unsupported format %q", format)
	}
	return &c, nil
}

// Requests resolves every asset against the defaults. It reports all invalid
// assets at once; the valid ones are still returned.
func (c *Catalog) Requests() ([]domain.AssetRequest, error) {
	out := make([]domain.AssetRequest, 0, len(c.Assets))
	var errs []error
	seen := make(map[string]struct{}, len(c.Assets))
	for i, a := range c.Assets {
		req, err := c.request(a)
		if err != nil {
			errs = append(errs, fmt.Errorf("asset #%d: %w", i+1, err))
			continue
		}
		if _, dup := seen[req.Name]; dup {
			errs = append(errs, fmt.Errorf("asset #%d: %w: duplicate name %q", i+1, domain.ErrInvalidRequest, req.Name))
			continue
		}
		seen[req.Name] = struct{}{}
		out = append(out, req)
	}
	return out, errors.Join(errs...)
}

// Select keeps the requests whose name is listed, preserving catalog order.
func Select(reqs []domain.AssetRequest, names []string) []domain.AssetRequest {
	if len(names) == 0 {
		return reqs
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			want[n] = struct{}{}
			want[Slug(n)] = struct{}{}
		}
	}
	var out []domain.AssetRequest
	for _, r := range reqs {
		_, byName := want[r.Name]
		_, bySlug := want[Slug(r.Name)]
		if byName || bySlug {
			out = append(out, r)
		}
	}
	return out
}

func (c *Catalog) request(a Asset) (domain.AssetRequest, error) {
	d := c.Defaults
	formatName := firstNonEmpty(a.Format, d.Format)
	format, err := domain.ParseFormat(formatName)
	if err != nil {
		return domain.AssetRequest{}, err
	}

	prompt := strings.TrimSpace(a.Prompt)
	if suffix := strings.TrimSpace(d.PromptSuffix); suffix != "" && prompt != "" {
		prompt = prompt + ", " + suffix
	}

	req := domain.AssetRequest{
		Name:           a.Name,
		Prompt:         prompt,
		NegativePrompt: firstNonEmpty(a.NegativePrompt, d.NegativePrompt),
		Style:          firstNonEmpty(a.Style, d.Style),
		ModelID:        firstNonEmpty(a.ModelID, d.ModelID),
		Width:          a.Size.Width,
		Height:         a.Size.Height,
		Format:         format,
	}
	if gen := firstSize(a.Generate, d.Generate); gen != nil {
		req.GenerateWidth, req.GenerateHeight = gen.Width, gen.Height
	}

	matte, err := resolveMatte(a, d)
	if err != nil {
		return domain.AssetRequest{}, fmt.Errorf("%s: %w", a.Name, err)
	}
	req.Matte = matte

	templates := a.Destinations
	if len(templates) == 0 {
		templates = d.Destinations
	}
	if len(templates) == 0 {
		templates = []string{DefaultDestination}
	}
	for _, tpl := range templates {
		req.Destinations = append(req.Destinations, expand(tpl, a.Name, format))
	}
	if src := strings.TrimSpace(a.Source); src != "" {
		req.Source = expand(src, a.Name, format)
	}
	return domain.NewAssetRequest(req)
}

// resolveMatte merges asset and default matte settings. An explicit
// transparent: false disables matting even when the defaults enable it.
func resolveMatte(a Asset, d Defaults) (*domain.MatteConfig, error) {
	transparent := a.Transparent
	if transparent == nil && a.Matte == nil {
		transparent = d.Transparent
	}
	if transparent != nil && !*transparent {
		return nil, nil
	}
	if transparent == nil && a.Matte == nil && d.Matte == nil {
		return nil, nil
	}

	cfg := DefaultMatte
	for _, m := range []*Matte{d.Matte, a.Matte} {
		if m == nil {
			continue
		}
		if m.Tolerance != nil {
			v, err := byteValue("tolerance", *m.Tolerance)
			if err != nil {
				return nil, err
			}
			cfg.Tolerance = v
		}
		if m.AlphaFloor != nil {
			v, err := byteValue("alpha_floor", *m.AlphaFloor)
			if err != nil {
				return nil, err
			}
			cfg.AlphaFloor = v
		}
		if strings.TrimSpace(m.Sample) != "" {
			mode, err := domain.ParseSampleMode(m.Sample)
			if err != nil {
				return nil, err
			}
			cfg.Sample = mode
		}
	}
	return &cfg, nil
}

func byteValue(field string, v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%w: matte %s %d outside 0..255", domain.ErrInvalidRequest, field, v)
	}
	return uint8(v), nil
}

// expand fills {name}, {slug} and {ext} in a destination template.
func expand(tpl, name string, format domain.Format) string {
	r := strings.NewReplacer(
		"{name}", strings.TrimSpace(name),
		"{slug}", Slug(name),
		"{ext}", format.Extension(),
	)
	return r.Replace(tpl)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstSize(sizes ...*Size) *Size {
	for _, s := range sizes {
		if s != nil && (s.Width != 0 || s.Height != 0) {
			return s
		}
	}
	return nil
}
