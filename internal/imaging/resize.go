package imaging

import (
	"fmt"

	"spritegen/internal/domain"
)

// Resize resamples src to w×h with nearest-neighbor sampling. Target pixel
// (x, y) copies source pixel (x*srcW/w, y*srcH/h) verbatim, so no colour or
// alpha value that is absent from src can appear in the result.
func Resize(src *RawImage, w, h int) (*RawImage, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: resize target %dx%d", domain.ErrInvalidDimensions, w, h)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if w == src.Width && h == src.Height {
		return src.Clone(), nil
	}
	dst := &RawImage{Width: w, Height: h, Pix: make([]byte, w*h*4)}
	// Column lookups are shared by every row.
	cols := make([]int, w)
	for x := range cols {
		cols[x] = x * src.Width / w * 4
	}
	for y := 0; y < h; y++ {
		srcRow := (y * src.Height / h) * src.Width * 4
		dstRow := y * w * 4
		for x, sx := range cols {
			copy(dst.Pix[dstRow+x*4:dstRow+x*4+4], src.Pix[srcRow+sx:srcRow+sx+4])
		}
	}
	return dst, nil
}
