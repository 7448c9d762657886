package fakeservice

import "spritegen/internal/imaging"

var (
	white = [4]byte{255, 255, 255, 255}
	gold  = [4]byte{200, 180, 20, 255}
)

// CenteredSquare renders an opaque white canvas with a gold square in the
// middle whose side is a fifth of the shorter edge.
func CenteredSquare(_ string, width, height int) *imaging.RawImage {
	img, err := imaging.NewRawImage(width, height)
	if err != nil {
		img, _ = imaging.NewRawImage(1, 1)
		width, height = 1, 1
	}
	img.Fill(0, 0, width, height, white)
	side := min(width, height) / 5
	x0 := (width - side) / 2
	y0 := (height - side) / 2
	img.Fill(x0, y0, x0+side, y0+side, gold)
	return img
}
