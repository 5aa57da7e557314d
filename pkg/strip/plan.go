package strip

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/ocrstitch/ocrstitch/pkg/block"
)

// SplitOversized cuts a crop into vertical windows of at most maxHeight
// pixels. Consecutive windows overlap by overlap pixels so no content is
// lost at a seam; a crop that already fits comes back as a single part.
func SplitOversized(c *block.Crop, maxHeight, overlap int) []Part {
	h := c.Height()
	if h <= maxHeight {
		return []Part{{Block: c.Block, Image: c.Image, Index: 0, Total: 1}}
	}

	type window struct{ top, bottom int }
	var windows []window
	top := 0
	for {
		bottom := top + maxHeight
		if bottom >= h {
			windows = append(windows, window{top, h})
			break
		}
		windows = append(windows, window{top, bottom})
		top = bottom - overlap
	}

	parts := make([]Part, len(windows))
	for i, w := range windows {
		parts[i] = Part{
			Block: c.Block,
			Image: sliceImage(c.Image, w.top, w.bottom),
			Index: i,
			Total: len(windows),
		}
	}
	return parts
}

// sliceImage returns the horizontal band [top, bottom) of an image,
// sharing pixels when the source supports sub-images.
func sliceImage(img image.Image, top, bottom int) image.Image {
	b := img.Bounds()
	r := image.Rect(b.Min.X, b.Min.Y+top, b.Max.X, b.Min.Y+bottom)
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// NewPlan packs crops into strips and image singletons. Crops must arrive
// in document order (block.SortDocumentOrder before cropping); the plan
// preserves that order in both lists.
//
// Text and table parts accumulate into the open strip until the next part
// would push the composite past MaxHeight, at which point the strip closes.
// An image block always closes the open strip and goes to the singleton
// list, split against the full height budget since singletons carry no
// band.
func NewPlan(crops []*block.Crop, p Params) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{}
	var open Strip
	var openHeight int

	closeStrip := func() {
		if len(open.Parts) > 0 {
			plan.Strips = append(plan.Strips, open)
			open = Strip{}
			openHeight = 0
		}
	}

	for _, c := range crops {
		if c == nil || c.Image == nil {
			continue
		}
		if c.Block.Kind == block.KindImage {
			closeStrip()
			plan.Singletons = append(plan.Singletons, SplitOversized(c, p.MaxHeight, p.Overlap)...)
			continue
		}

		for _, part := range SplitOversized(c, p.PartCap(), p.Overlap) {
			add := additionHeight(open, part, p)
			if len(open.Parts) > 0 && openHeight+add > p.MaxHeight {
				closeStrip()
				add = additionHeight(open, part, p)
			}
			open.Parts = append(open.Parts, part)
			openHeight += add
		}
	}
	closeStrip()

	for i, s := range plan.Strips {
		if got := ExpectedHeight(s, p); got > p.MaxHeight {
			return nil, fmt.Errorf("strip %d height %d exceeds budget %d", i, got, p.MaxHeight)
		}
	}
	return plan, nil
}

// additionHeight is the composite growth from appending part to the open
// strip: the part itself, a band when the part starts a new block, and the
// gaps in front of each new element.
func additionHeight(open Strip, part Part, p Params) int {
	newBlock := true
	if n := len(open.Parts); n > 0 {
		newBlock = open.Parts[n-1].Block != part.Block
	}

	add := part.Height()
	if newBlock {
		add += p.BandHeight
	}
	switch {
	case len(open.Parts) == 0 && newBlock:
		add += p.Gap // between the leading band and the part
	case newBlock:
		add += 2 * p.Gap // before the band and between band and part
	default:
		add += p.Gap // between the previous part and this one
	}
	return add
}
