// Package block defines the annotated document regions the OCR pipeline
// operates on and produces their pixel crops from rendered page images.
//
// Blocks are authored outside the pipeline (typically by an annotation
// editor) and arrive as a layout document: per block an identifier, page
// index, normalized geometry and a content kind. The pipeline treats a
// block as read-mostly input; the only field it ever writes is the
// recognized Content.
//
// Key Features:
//
// - Layout JSON loading with geometry validation and identifier backfill
// - Normalized to pixel coordinate conversion against a concrete page raster
// - Rectangular clips and polygon-masked crops composited over white
// - Page rasters supplied through the PageProvider interface
package block

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// Kind classifies what a block contains.
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
	KindImage Kind = "image"
)

// Shape describes a block's geometry.
type Shape string

const (
	ShapeRect    Shape = "rect"
	ShapePolygon Shape = "polygon"
)

// Point is a normalized page coordinate, 0..1 on both axes.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NormRect is a normalized bounding box relative to the page, 0..1 on both
// axes with Top < Bottom.
type NormRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Pixels converts the normalized box to pixel coordinates against a page
// raster and clamps the result to the raster bounds.
func (r NormRect) Pixels(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	px := image.Rect(
		bounds.Min.X+int(math.Round(r.Left*w)),
		bounds.Min.Y+int(math.Round(r.Top*h)),
		bounds.Min.X+int(math.Round(r.Right*w)),
		bounds.Min.Y+int(math.Round(r.Bottom*h)),
	)
	return px.Intersect(bounds)
}

// Block is one annotated region of a document page.
type Block struct {
	ID      string   `json:"id"`
	Page    int      `json:"page"`
	Kind    Kind     `json:"kind"`
	Shape   Shape    `json:"shape,omitempty"`
	Box     NormRect `json:"box"`
	Polygon []Point  `json:"polygon,omitempty"`

	// Content is the recognized text, the single field the pipeline writes.
	Content string `json:"content,omitempty"`
}

// Validate checks identifier, kind and geometry.
func (b *Block) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("block has no id")
	}
	if b.Page < 0 {
		return fmt.Errorf("block %s: negative page index %d", b.ID, b.Page)
	}
	switch b.Kind {
	case KindText, KindTable, KindImage:
	default:
		return fmt.Errorf("block %s: unknown kind %q", b.ID, b.Kind)
	}
	switch b.Shape {
	case ShapeRect, ShapePolygon:
	default:
		return fmt.Errorf("block %s: unknown shape %q", b.ID, b.Shape)
	}
	r := b.Box
	if r.Left < 0 || r.Top < 0 || r.Right > 1 || r.Bottom > 1 {
		return fmt.Errorf("block %s: box outside the unit square", b.ID)
	}
	if r.Left >= r.Right || r.Top >= r.Bottom {
		return fmt.Errorf("block %s: degenerate box", b.ID)
	}
	if b.Shape == ShapePolygon && len(b.Polygon) < 3 {
		return fmt.Errorf("block %s: polygon needs at least 3 vertices, got %d", b.ID, len(b.Polygon))
	}
	return nil
}

// SortDocumentOrder orders blocks by page, then by the top edge of their
// box, approximating natural reading order. The sort is stable so blocks
// sharing a top edge keep their layout order.
func SortDocumentOrder(blocks []*Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Page != blocks[j].Page {
			return blocks[i].Page < blocks[j].Page
		}
		return blocks[i].Box.Top < blocks[j].Box.Top
	})
}
