package block

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/vector"
)

// DefaultPadding is the pixel margin added around a block's box when
// cropping, so strokes touching the annotation edge survive.
const DefaultPadding = 8

// Crop couples a block with its pixel rectangle on the rendered page and
// the cropped image. The image is always a copy; the page raster can be
// released as soon as its blocks are cropped.
type Crop struct {
	Block *Block
	Rect  image.Rectangle
	Image image.Image
}

// Width returns the crop width in pixels.
func (c *Crop) Width() int { return c.Image.Bounds().Dx() }

// Height returns the crop height in pixels.
func (c *Crop) Height() int { return c.Image.Bounds().Dy() }

// NewCrop produces the pixel crop for a block against its rendered page.
// The normalized box is converted to pixels, expanded by padding and
// clamped to the page. Rect blocks get a plain rectangular clip; polygon
// blocks are composited over white through a rasterized vertex mask so
// pixels outside the polygon are blanked.
func NewCrop(page image.Image, b *Block, padding int) (*Crop, error) {
	if page == nil {
		return nil, fmt.Errorf("block %s: no page image", b.ID)
	}
	bounds := page.Bounds()
	px := b.Box.Pixels(bounds)
	if px.Empty() {
		return nil, fmt.Errorf("block %s: empty crop region", b.ID)
	}
	if padding > 0 {
		px = px.Inset(-padding).Intersect(bounds)
	}

	dst := image.NewRGBA(image.Rect(0, 0, px.Dx(), px.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if b.Shape == ShapePolygon && len(b.Polygon) >= 3 {
		z := vector.NewRasterizer(px.Dx(), px.Dy())
		pw := float64(bounds.Dx())
		ph := float64(bounds.Dy())
		for i, v := range b.Polygon {
			x := float32(v.X*pw + float64(bounds.Min.X-px.Min.X))
			y := float32(v.Y*ph + float64(bounds.Min.Y-px.Min.Y))
			if i == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
		z.Draw(dst, dst.Bounds(), page, px.Min)
	} else {
		draw.Draw(dst, dst.Bounds(), page, px.Min, draw.Src)
	}

	return &Crop{Block: b, Rect: px, Image: dst}, nil
}
