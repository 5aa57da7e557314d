package strip

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrstitch/ocrstitch/pkg/block"
)

var partInk = color.RGBA{R: 200, A: 255}

func solidPart(b *block.Block, w, h, index, total int) Part {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(partInk), image.Point{}, draw.Src)
	return Part{Block: b, Image: img, Index: index, Total: total}
}

func textBlock(id string) *block.Block {
	return &block.Block{ID: id, Kind: block.KindText, Shape: block.ShapeRect}
}

func TestComposeSingleBlock(t *testing.T) {
	p := DefaultParams()
	s := Strip{Parts: []Part{solidPart(textBlock("blk-a"), 200, 100, 0, 1)}}

	img, err := Compose(s, p)
	require.NoError(t, err)

	// band + gap + part
	want := p.BandHeight + p.Gap + 100
	assert.Equal(t, want, ExpectedHeight(s, p))
	assert.Equal(t, want, img.Bounds().Dy())
	assert.Equal(t, CompositeWidth(s, p), img.Bounds().Dx())
	assert.GreaterOrEqual(t, img.Bounds().Dx(), p.MinWidth)
}

func TestComposeSplitBlockSingleBand(t *testing.T) {
	p := DefaultParams()
	b := textBlock("blk-a")
	s := Strip{Parts: []Part{
		solidPart(b, 200, 100, 0, 2),
		solidPart(b, 200, 120, 1, 2),
	}}

	img, err := Compose(s, p)
	require.NoError(t, err)

	// one band, two parts, two gaps
	want := p.BandHeight + 100 + 120 + 2*p.Gap
	assert.Equal(t, want, ExpectedHeight(s, p))
	assert.Equal(t, want, img.Bounds().Dy())
}

func TestComposeThreeBlocks(t *testing.T) {
	p := DefaultParams()
	s := Strip{Parts: []Part{
		solidPart(textBlock("blk-a"), 180, 50, 0, 1),
		solidPart(textBlock("blk-b"), 200, 60, 0, 1),
		solidPart(textBlock("blk-c"), 160, 70, 0, 1),
	}}

	img, err := Compose(s, p)
	require.NoError(t, err)

	// three bands, three parts, five gaps
	want := 3*p.BandHeight + 50 + 60 + 70 + 5*p.Gap
	assert.Equal(t, want, ExpectedHeight(s, p))
	assert.Equal(t, want, img.Bounds().Dy())
}

func TestComposePixels(t *testing.T) {
	p := DefaultParams()
	s := Strip{Parts: []Part{solidPart(textBlock("blk-a"), 200, 100, 0, 1)}}

	img, err := Compose(s, p)
	require.NoError(t, err)
	width := img.Bounds().Dx()

	// Band background is solid dark at the corners.
	assert.Equal(t, bandBackground, img.At(2, 2))
	assert.Equal(t, bandBackground, img.At(width-3, p.BandHeight-3))

	// The band carries light glyph pixels somewhere on its center row.
	found := false
	for x := 0; x < width; x++ {
		if r, g, b, _ := img.At(x, p.BandHeight/2).RGBA(); r == 0xffff && g == 0xffff && b == 0xffff {
			found = true
			break
		}
	}
	assert.True(t, found, "no glyph pixels on band center row")

	// The gap row between band and part stays white.
	gapY := p.BandHeight + p.Gap/2
	r, g, b, _ := img.At(width/2, gapY).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)

	// The part is pasted centered below band and gap.
	partY := p.BandHeight + p.Gap + 50
	assert.Equal(t, partInk, img.At(width/2, partY))
}

func TestComposeBandLabel(t *testing.T) {
	label := BandLabel("blk-a")
	assert.Contains(t, label, "BLOCK_ID: ")
	assert.Len(t, label, len("BLOCK_ID: ")+13)
}

func TestComposeEmptyStrip(t *testing.T) {
	_, err := Compose(Strip{}, DefaultParams())
	assert.Error(t, err)
}

func TestComposePlannedStrips(t *testing.T) {
	crops := []*block.Crop{
		testCrop("blk-a", block.KindText, 140, 90),
		testCrop("blk-b", block.KindText, 150, 110),
		testCrop("blk-c", block.KindTable, 160, 400),
		testCrop("blk-d", block.KindText, 170, 35),
	}
	p := testParams()
	plan, err := NewPlan(crops, p)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Strips)

	for i, s := range plan.Strips {
		img, err := Compose(s, p)
		require.NoError(t, err, "strip %d", i)
		assert.Equal(t, ExpectedHeight(s, p), img.Bounds().Dy(), "strip %d", i)
		assert.LessOrEqual(t, img.Bounds().Dy(), p.MaxHeight, "strip %d", i)
	}
}
