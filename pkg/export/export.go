// Package export renders finished OCR jobs into deliverable artifacts.
//
// An export job pairs the annotated layout with the reconciled results
// and the rendered page images. Three exporters consume it:
//
// - AssemblePDF: a searchable PDF with each page image full-bleed and an
//   invisible text layer carrying every block's recognized content at the
//   block's position
// - GenerateHOCR: block-level hOCR with one content area per block
// - GenerateReport: a static HTML review page listing every block with
//   its method, score and rendered content
//
// Main Functions:
//
// - CollectPages: pulls and encodes page rasters from a PageProvider
// - AssemblePDF, GenerateHOCR, GenerateReport: the exporters
package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	_ "image/jpeg"

	"golang.org/x/net/html"

	"github.com/ocrstitch/ocrstitch/pkg/block"
	"github.com/ocrstitch/ocrstitch/pkg/reconcile"
)

// Page is one rendered page ready for export: the encoded raster, its
// pixel dimensions and the name embedded in hOCR page titles.
type Page struct {
	Name   string
	Image  []byte
	Width  int
	Height int
}

// Job is everything the exporters need about one finished run.
type Job struct {
	Layout  *block.Layout
	Results *reconcile.ResultSet
	Pages   []Page
}

func (j *Job) validate() error {
	if j.Layout == nil || len(j.Layout.Blocks) == 0 {
		return fmt.Errorf("export job has no layout")
	}
	if j.Results == nil {
		return fmt.Errorf("export job has no results")
	}
	if len(j.Pages) == 0 {
		return fmt.Errorf("export job has no pages")
	}
	for i, p := range j.Pages {
		if len(p.Image) == 0 {
			return fmt.Errorf("page %d has no image data", i+1)
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("page %d has invalid dimensions %dx%d", i+1, p.Width, p.Height)
		}
	}
	return nil
}

// pageBlocks returns the blocks of one page that resolved with content,
// in document order.
func (j *Job) pageBlocks(page int) []*block.Block {
	var out []*block.Block
	for _, b := range j.Layout.Blocks {
		if b.Page != page {
			continue
		}
		r, ok := j.Results.Get(b.ID)
		if !ok || r.Kind != reconcile.KindOK || r.Content == "" {
			continue
		}
		out = append(out, b)
	}
	block.SortDocumentOrder(out)
	return out
}

func (j *Job) content(id string) string {
	r, ok := j.Results.Get(id)
	if !ok {
		return ""
	}
	return r.Content
}

// CollectPages renders and encodes every page of a job through the
// provider, recording pixel dimensions as it goes.
func CollectPages(ctx context.Context, provider block.PageProvider, count int) ([]Page, error) {
	pages := make([]Page, 0, count)
	for i := 0; i < count; i++ {
		img, err := provider.Page(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("failed to load page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		b := img.Bounds()
		pages = append(pages, Page{
			Name:   fmt.Sprintf(block.DefaultPagePattern, i+1),
			Image:  buf.Bytes(),
			Width:  b.Dx(),
			Height: b.Dy(),
		})
	}
	return pages, nil
}

// contentLines splits recognized content into printable lines, flattening
// any markup so table blocks contribute their cell text rather than tags.
func contentLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(flattenMarkup(line))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// flattenMarkup reduces an HTML fragment to its visible text. Plain text
// passes through untouched.
func flattenMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(parts, " ")
}
