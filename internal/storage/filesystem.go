// Package storage persists processed sprites onto the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spritegen/internal/domain"
	"spritegen/internal/imaging"
)

// Writer writes encoded sprites to one or more destination paths. Relative
// destinations resolve against the writer root.
type Writer struct {
	root string
}

// NewWriter initializes a Writer rooted at root ("" means the working directory).
func NewWriter(root string) (*Writer, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	return &Writer{root: abs}, nil
}

// Root returns the directory relative destinations are resolved against.
func (w *Writer) Root() string {
	if w == nil {
		return ""
	}
	return w.root
}

// PathResult is the outcome for a single destination.
type PathResult struct {
	Destination string
	Path        string
	Bytes       int
	Err         error
}

// WriteReport aggregates per-destination outcomes in destination order.
type WriteReport struct {
	Results []PathResult
}

// Written lists the resolved paths that were written successfully.
func (r WriteReport) Written() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Path)
		}
	}
	return out
}

// Err joins every per-destination failure, or returns nil.
func (r WriteReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Resolve maps a destination onto the filesystem path it is written to.
func (w *Writer) Resolve(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", errors.New("storage: destination is required")
	}
	p := filepath.FromSlash(destination)
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.root, p)
	}
	return filepath.Clean(p), nil
}

// Read loads the file behind destination, typically a sprite written by an
// earlier run. It returns the data and the resolved path.
func (w *Writer) Read(ctx context.Context, destination string) ([]byte, string, error) {
	if w == nil {
		return nil, "", fmt.Errorf("%w: storage: no writer configured", domain.ErrIOFailure)
	}
	fullPath, err := w.Resolve(destination)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrIOFailure, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fullPath, fmt.Errorf("%w: %s: %v", domain.ErrIOFailure, destination, err)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fullPath, fmt.Errorf("%w: read %s: %v", domain.ErrIOFailure, destination, err)
	}
	return data, fullPath, nil
}

// Write encodes sprite once and writes the same bytes to every destination,
// overwriting existing files. A failing destination does not stop the rest.
func (w *Writer) Write(ctx context.Context, sprite *imaging.RawImage, format domain.Format, destinations []string) (WriteReport, error) {
	if w == nil {
		return WriteReport{}, fmt.Errorf("%w: storage: no writer configured", domain.ErrIOFailure)
	}
	data, err := imaging.Encode(sprite, format)
	if err != nil {
		return WriteReport{}, fmt.Errorf("%w: %v", domain.ErrIOFailure, err)
	}
	report := WriteReport{Results: make([]PathResult, 0, len(destinations))}
	for _, dest := range destinations {
		res := PathResult{Destination: dest}
		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("%w: %s: %v", domain.ErrIOFailure, dest, err)
			report.Results = append(report.Results, res)
			continue
		}
		res.Path, res.Err = w.writeFile(dest, data)
		if res.Err == nil {
			res.Bytes = len(data)
		}
		report.Results = append(report.Results, res)
	}
	return report, report.Err()
}

func (w *Writer) writeFile(dest string, data []byte) (string, error) {
	fullPath, err := w.Resolve(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIOFailure, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fullPath, fmt.Errorf("%w: ensure directory for %s: %v", domain.ErrIOFailure, dest, err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fullPath, fmt.Errorf("%w: write %s: %v", domain.ErrIOFailure, dest, err)
	}
	return fullPath, nil
}
