package block

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"
)

// PageProvider supplies rendered page rasters on demand. Rendering itself
// (rasterizing a PDF page, fetching a scan) happens behind this interface;
// the pipeline requests one page at a time and drops the raster once its
// blocks are cropped.
type PageProvider interface {
	// Page returns the raster for the zero-based page index.
	Page(ctx context.Context, index int) (image.Image, error)
}

// DirProvider serves pre-rendered page images from a directory. Page i is
// read from fmt.Sprintf(pattern, i+1), so files on disk are numbered from
// one the way rasterizer tools emit them.
type DirProvider struct {
	Dir     string
	Pattern string
}

// DefaultPagePattern matches the file naming of common PDF rasterizers.
const DefaultPagePattern = "page-%04d.png"

// NewDirProvider creates a provider over a directory of page images. An
// empty pattern falls back to DefaultPagePattern.
func NewDirProvider(dir, pattern string) *DirProvider {
	if pattern == "" {
		pattern = DefaultPagePattern
	}
	return &DirProvider{Dir: dir, Pattern: pattern}
}

// Page loads and decodes one page image.
func (p *DirProvider) Page(ctx context.Context, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(p.Dir, fmt.Sprintf(p.Pattern, index+1))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page %d: %w", index, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page %d (%s): %w", index, path, err)
	}
	return img, nil
}
