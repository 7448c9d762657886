package imaging

import (
	"fmt"

	"spritegen/internal/domain"
)

// Sentinel is written for every pixel classified as background. Only alpha is
// meaningful; RGB is fixed rather than preserved from the source.
var Sentinel = [4]byte{0, 0, 0, 0}

// MatteStats summarizes a matte pass.
type MatteStats struct {
	References [][4]byte
	Cleared    int
}

// Matte returns a copy of src with background pixels replaced by Sentinel.
//
// Classification is a single pass over every pixel without any connectivity
// constraint: a foreground-enclosed region that matches a reference colour is
// cleared as well.
func Matte(src *RawImage, cfg domain.MatteConfig) (*RawImage, MatteStats, error) {
	if err := src.Validate(); err != nil {
		return nil, MatteStats{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, MatteStats{}, err
	}
	refs := referenceColors(src, cfg.Sample)
	out := src.Clone()
	stats := MatteStats{References: refs}
	tol := int(cfg.Tolerance)
	for i := 0; i < len(out.Pix); i += 4 {
		p := out.Pix[i : i+4 : i+4]
		if isBackground(p, refs, tol, cfg.AlphaFloor) {
			copy(p, Sentinel[:])
			stats.Cleared++
		}
	}
	return out, stats, nil
}

func referenceColors(m *RawImage, mode domain.SampleMode) [][4]byte {
	tl := m.RGBA(0, 0)
	if mode != domain.SampleFourCorners {
		return [][4]byte{tl}
	}
	return [][4]byte{
		tl,
		m.RGBA(m.Width-1, 0),
		m.RGBA(0, m.Height-1),
		m.RGBA(m.Width-1, m.Height-1),
	}
}

func isBackground(p []byte, refs [][4]byte, tol int, alphaFloor uint8) bool {
	if alphaFloor > 0 && p[3] < alphaFloor {
		return true
	}
	for _, r := range refs {
		if absDiff(p[0], r[0]) < tol && absDiff(p[1], r[1]) < tol && absDiff(p[2], r[2]) < tol {
			return true
		}
	}
	return false
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// String is used in debug logs.
func (s MatteStats) String() string {
	return fmt.Sprintf("refs=%v cleared=%d", s.References, s.Cleared)
}
