package strip

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ocrstitch/ocrstitch/pkg/armor"
	"github.com/ocrstitch/ocrstitch/pkg/block"
)

// bandPrefix is the literal lead-in of every separator band label. The
// reconciliation scanner looks for the same token in OCR responses.
const bandPrefix = "BLOCK_ID: "

// bandPad is the text margin inside a band before upscaling.
const bandPad = 4

// bandScale is the integer upscale factor for band text. Face7x13 glyphs
// are too small to survive model-side downsampling at 1x.
const bandScale = 2

var bandBackground = color.RGBA{A: 255}

// BandLabel is the text rendered into a block's separator band.
func BandLabel(id string) string {
	return bandPrefix + armor.Encode(id).String()
}

// ExpectedHeight computes the composite height of a strip analytically:
// part heights plus one band per distinct consecutive block plus one gap
// between every pair of stacked elements. Compose must produce exactly
// this height.
func ExpectedHeight(s Strip, p Params) int {
	total := 0
	elements := 0
	var prev *block.Block
	for _, part := range s.Parts {
		if part.Block != prev {
			total += p.BandHeight
			elements++
			prev = part.Block
		}
		total += part.Height()
		elements++
	}
	if elements > 1 {
		total += p.Gap * (elements - 1)
	}
	return total
}

// CompositeWidth is the width of a strip's composite: the widest part,
// never below MinWidth nor below what the band label needs.
func CompositeWidth(s Strip, p Params) int {
	w := p.MinWidth
	for _, part := range s.Parts {
		if pw := part.Width(); pw > w {
			w = pw
		}
	}
	if len(s.Parts) > 0 {
		label := BandLabel(s.Parts[0].Block.ID)
		if req := bandScale * (font.MeasureString(basicfont.Face7x13, label).Ceil() + 2*bandPad); req > w {
			w = req
		}
	}
	return w
}

// Compose renders a strip into its composite image: a band at every block
// boundary including the first, then the block's parts, stacked top to
// bottom with gaps, everything horizontally centered over white.
func Compose(s Strip, p Params) (*image.RGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(s.Parts) == 0 {
		return nil, fmt.Errorf("cannot compose an empty strip")
	}

	width := CompositeWidth(s, p)
	height := ExpectedHeight(s, p)
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	y := 0
	first := true
	var prev *block.Block
	for _, part := range s.Parts {
		if part.Block != prev {
			if !first {
				y += p.Gap
			}
			band := renderBand(width, p, BandLabel(part.Block.ID))
			draw.Draw(canvas, image.Rect(0, y, width, y+p.BandHeight), band, image.Point{}, draw.Src)
			y += p.BandHeight
			first = false
			prev = part.Block
		}
		y += p.Gap
		x := (width - part.Width()) / 2
		draw.Draw(canvas, image.Rect(x, y, x+part.Width(), y+part.Height()), part.Image, part.Image.Bounds().Min, draw.Src)
		y += part.Height()
	}

	if y != height {
		return nil, fmt.Errorf("composed height %d does not match expected %d", y, height)
	}
	return canvas, nil
}

// renderBand draws one separator band: light label text on a solid dark
// background, centered, upscaled with nearest-neighbor so glyph edges stay
// hard for the OCR pass.
func renderBand(width int, p Params, label string) *image.RGBA {
	band := image.NewRGBA(image.Rect(0, 0, width, p.BandHeight))
	draw.Draw(band, band.Bounds(), image.NewUniform(bandBackground), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	textW := font.MeasureString(face, label).Ceil()
	src := image.NewRGBA(image.Rect(0, 0, textW+2*bandPad, face.Height+2*bandPad))
	draw.Draw(src, src.Bounds(), image.NewUniform(bandBackground), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  src,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(bandPad, bandPad+face.Ascent),
	}
	d.DrawString(label)

	scale := bandScale
	for scale > 1 && (scale*src.Bounds().Dy() > p.BandHeight || scale*src.Bounds().Dx() > width) {
		scale--
	}
	dw := scale * src.Bounds().Dx()
	dh := scale * src.Bounds().Dy()
	ox := (width - dw) / 2
	if ox < 0 {
		ox = 0
	}
	oy := (p.BandHeight - dh) / 2
	if oy < 0 {
		oy = 0
	}
	dst := image.Rect(ox, oy, ox+dw, oy+dh)
	xdraw.NearestNeighbor.Scale(band, dst, src, src.Bounds(), xdraw.Over, nil)
	return band
}
