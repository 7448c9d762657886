package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spritegen/internal/domain"
	"spritegen/internal/imaging"
)

func sprite(t *testing.T) *imaging.RawImage {
	t.Helper()
	img, err := imaging.NewRawImage(16, 16)
	require.NoError(t, err)
	img.Fill(7, 7, 10, 10, [4]byte{200, 180, 20, 255})
	return img
}

func TestWriteProducesIdenticalFiles(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root)
	require.NoError(t, err)
	abs := filepath.Join(t.TempDir(), "abs", "coin.png")

	report, err := w.Write(context.Background(), sprite(t), domain.FormatPNG, []string{"A/coin.png", "B/nested/coin.png", abs})
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Len(t, report.Written(), 3)

	first, err := os.ReadFile(filepath.Join(root, "A", "coin.png"))
	require.NoError(t, err)
	for _, p := range []string{filepath.Join(root, "B", "nested", "coin.png"), abs} {
		other, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, other), p)
	}

	decoded, _, err := imaging.Decode(first)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(sprite(t)))
}

func TestWriteOverwritesExistingFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "coin.png")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))

	w, err := NewWriter(root)
	require.NoError(t, err)
	_, err = w.Write(context.Background(), sprite(t), domain.FormatPNG, []string{"coin.png"})
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("stale"), data)
}

func TestWriteContinuesAfterFailedDestination(t *testing.T) {
	root := t.TempDir()
	// A regular file where a directory is expected makes MkdirAll fail.
	require.NoError(t, os.WriteFile(filepath.Join(root, "blocked"), []byte("x"), 0o644))

	w, err := NewWriter(root)
	require.NoError(t, err)
	report, err := w.Write(context.Background(), sprite(t), domain.FormatPNG, []string{"A/coin.png", "blocked/coin.png", "C/coin.png"})
	require.ErrorIs(t, err, domain.ErrIOFailure)

	require.Len(t, report.Results, 3)
	assert.NoError(t, report.Results[0].Err)
	assert.ErrorIs(t, report.Results[1].Err, domain.ErrIOFailure)
	assert.NoError(t, report.Results[2].Err)
	assert.Len(t, report.Written(), 2)

	a, err := os.ReadFile(filepath.Join(root, "A", "coin.png"))
	require.NoError(t, err)
	c, err := os.ReadFile(filepath.Join(root, "C", "coin.png"))
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestWriteRejectsInvalidSprite(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), &imaging.RawImage{Width: 1, Height: 1}, domain.FormatPNG, []string{"x.png"})
	require.ErrorIs(t, err, domain.ErrIOFailure)
}

func TestResolve(t *testing.T) {
	w, err := NewWriter("/srv/game")
	require.NoError(t, err)

	p, err := w.Resolve("public/sprites/../sprites/coin.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/game", "public", "sprites", "coin.png"), p)

	p, err = w.Resolve("/tmp/coin.png")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/coin.png", p)

	_, err = w.Resolve("  ")
	require.Error(t, err)
}

func TestReadReturnsWrittenBytes(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	report, err := w.Write(context.Background(), sprite(t), domain.FormatPNG, []string{"sprites/coin.png"})
	require.NoError(t, err)

	data, path, err := w.Read(context.Background(), "sprites/coin.png")
	require.NoError(t, err)
	assert.Equal(t, report.Written()[0], path)
	assert.Equal(t, report.Results[0].Bytes, len(data))

	_, _, err = w.Read(context.Background(), "sprites/missing.png")
	require.ErrorIs(t, err, domain.ErrIOFailure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = w.Read(ctx, "sprites/coin.png")
	require.ErrorIs(t, err, domain.ErrIOFailure)
}
