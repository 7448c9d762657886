package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"spritegen/internal/domain"
)

func TestResizeRejectsNonPositiveTarget(t *testing.T) {
	img := solid(t, 4, 4, [4]byte{1, 2, 3, 255})
	for _, dims := range [][2]int{{0, 4}, {4, 0}, {-1, 4}, {4, -3}} {
		_, err := Resize(img, dims[0], dims[1])
		require.ErrorIs(t, err, domain.ErrInvalidDimensions, "target %v", dims)
	}
}

func TestResizeDownThenUpIsLossy(t *testing.T) {
	img, err := NewRawImage(4, 4)
	require.NoError(t, err)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, [4]byte{byte(x * 60), byte(y * 60), 7, 255})
		}
	}
	small, err := Resize(img, 2, 2)
	require.NoError(t, err)
	back, err := Resize(small, 4, 4)
	require.NoError(t, err)

	assert.False(t, back.Equal(img))
	assert.Equal(t, img.RGBA(0, 0), back.RGBA(1, 1))
	assert.Equal(t, img.RGBA(2, 2), back.RGBA(3, 3))
}

func TestResizeUpscaleReplicatesPixels(t *testing.T) {
	img, err := NewRawImage(2, 1)
	require.NoError(t, err)
	img.Set(0, 0, [4]byte{255, 0, 0, 255})
	img.Set(1, 0, [4]byte{0, 0, 255, 0})

	out, err := Resize(img, 4, 2)
	require.NoError(t, err)
	for y := 0; y < 2; y++ {
		assert.Equal(t, [4]byte{255, 0, 0, 255}, out.RGBA(0, y))
		assert.Equal(t, [4]byte{255, 0, 0, 255}, out.RGBA(1, y))
		assert.Equal(t, [4]byte{0, 0, 255, 0}, out.RGBA(2, y))
		assert.Equal(t, [4]byte{0, 0, 255, 0}, out.RGBA(3, y))
	}
}

func TestMatteThenResizeCoinSprite(t *testing.T) {
	img := solid(t, 512, 512, [4]byte{10, 10, 10, 255})
	img.Fill(206, 206, 306, 306, [4]byte{200, 180, 20, 255})

	matted, _, err := Matte(img, domain.MatteConfig{Tolerance: 30})
	require.NoError(t, err)
	sprite, err := Resize(matted, 16, 16)
	require.NoError(t, err)
	require.Equal(t, 16, sprite.Width)
	require.Equal(t, 16, sprite.Height)

	minX, minY, maxX, maxY := 16, 16, -1, -1
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			px := sprite.RGBA(x, y)
			if px[3] == 0 {
				continue
			}
			require.Equal(t, [4]byte{200, 180, 20, 255}, px)
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
	}
	assert.Equal(t, [4]int{7, 7, 9, 9}, [4]int{minX, minY, maxX, maxY})
	left, right := minX, 15-maxX
	assert.LessOrEqual(t, abs(left-right), 1, "opaque block should be centered")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestPropertyResizeIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		img := drawImage(rt, 0)
		out, err := Resize(img, img.Width, img.Height)
		require.NoError(rt, err)
		require.True(rt, out.Equal(img))
		if len(img.Pix) > 0 {
			require.NotSame(rt, &img.Pix[0], &out.Pix[0])
		}
	})
}

func TestPropertyResizeCopiesFloorSourcePixel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		img := drawImage(rt, 0)
		w := rapid.IntRange(1, 30).Draw(rt, "target_w")
		h := rapid.IntRange(1, 30).Draw(rt, "target_h")
		out, err := Resize(img, w, h)
		require.NoError(rt, err)
		require.Len(rt, out.Pix, w*h*4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				require.Equal(rt, img.RGBA(x*img.Width/w, y*img.Height/h), out.RGBA(x, y))
			}
		}
	})
}
