// Package strip packs block crops into height-bounded composite images for
// batched OCR submission.
//
// Many small blocks per request would be wasteful, so crops are stacked
// vertically into "strips": one composite image per OCR call, with a
// high-contrast separator band carrying an armor-coded block identifier at
// every block boundary. A response for a strip is later cut back into
// per-block segments using those bands.
//
// Key Features:
//
// - Document-order packing of text and table crops under a height budget
// - Sliding-window splitting of oversized crops with seam overlap
// - Image blocks kept out of strips as singleton submissions
// - Composite rendering with armor-coded separator bands
//
// Main Functions:
//
// - Plan: group crops into strips and image singletons
// - SplitOversized: cut one crop into overlapping window parts
// - Compose: render a strip into its composite image
// - ExpectedHeight: the analytic composite height for validation
package strip

import (
	"fmt"
	"image"

	"github.com/ocrstitch/ocrstitch/pkg/block"
)

// Params bounds strip geometry. The same numbers drive planning and
// composition so a planned strip always renders inside the budget.
type Params struct {
	MaxHeight  int // composite height budget in pixels
	Overlap    int // seam overlap between parts of a split crop
	Gap        int // blank rows between stacked elements
	BandHeight int // separator band height
	MinWidth   int // lower bound on composite width so band text fits
}

// DefaultParams returns the strip geometry used in production jobs.
func DefaultParams() Params {
	return Params{
		MaxHeight:  1800,
		Overlap:    48,
		Gap:        16,
		BandHeight: 44,
		MinWidth:   360,
	}
}

// PartCap is the tallest a single text/table part may be: a lone part must
// fit an empty strip together with its band and one gap.
func (p Params) PartCap() int {
	return p.MaxHeight - p.BandHeight - p.Gap
}

// Validate rejects geometry that cannot pack.
func (p Params) Validate() error {
	if p.MaxHeight <= 0 || p.BandHeight <= 0 {
		return fmt.Errorf("strip params: non-positive heights")
	}
	if p.Gap < 0 || p.Overlap < 0 {
		return fmt.Errorf("strip params: negative gap or overlap")
	}
	if p.MinWidth <= 0 {
		return fmt.Errorf("strip params: non-positive min width")
	}
	cap := p.PartCap()
	if cap <= p.Overlap {
		return fmt.Errorf("strip params: part cap %d not above overlap %d", cap, p.Overlap)
	}
	return nil
}

// Part is one window of a block crop, ready for stacking. Index counts the
// window within its block from zero; Total is the block's window count.
type Part struct {
	Block *block.Block
	Image image.Image
	Index int
	Total int
}

// Width returns the part width in pixels.
func (p Part) Width() int { return p.Image.Bounds().Dx() }

// Height returns the part height in pixels.
func (p Part) Height() int { return p.Image.Bounds().Dy() }

// Strip is an ordered run of parts destined for one composite image.
type Strip struct {
	Parts []Part
}

// IDs returns the distinct block identifiers of the strip in order of
// first appearance, which is the order the separator bands will carry.
func (s Strip) IDs() []string {
	var out []string
	var prev *block.Block
	for _, p := range s.Parts {
		if p.Block != prev {
			out = append(out, p.Block.ID)
			prev = p.Block
		}
	}
	return out
}

// Plan is the complete packing of a job: strips of text/table parts plus
// the image blocks submitted on their own. Both lists keep document order.
type Plan struct {
	Strips     []Strip
	Singletons []Part
}
