package export

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"image"
	"strings"
	"text/template"

	"github.com/ocrstitch/ocrstitch/pkg/block"
)

//go:embed templates/hocr.tmpl
var hocrFS embed.FS

// hocrPage is one page of the generated document. Number is 1-based for
// element ids; PPage is the 0-based physical page number hOCR titles use.
type hocrPage struct {
	Number int
	PPage  int
	Image  string
	Width  int
	Height int
	Blocks []hocrBlock
}

// hocrBlock is one content area: the block box in pixels plus its
// recognized lines, each line given an even slice of the box.
type hocrBlock struct {
	ID    string
	Box   image.Rectangle
	Lines []hocrLine
}

type hocrLine struct {
	Box  image.Rectangle
	Text string
}

type hocrDoc struct {
	Title string
	Pages []hocrPage
}

// GenerateHOCR renders a finished job as an hOCR document with one
// ocr_carea per resolved block. Granularity stops at lines; word boxes
// are not reconstructed.
func GenerateHOCR(job *Job) (string, error) {
	if err := job.validate(); err != nil {
		return "", err
	}

	doc := hocrDoc{Title: job.Layout.Name}
	for i, page := range job.Pages {
		bounds := image.Rect(0, 0, page.Width, page.Height)
		hp := hocrPage{
			Number: i + 1,
			PPage:  i,
			Image:  page.Name,
			Width:  page.Width,
			Height: page.Height,
		}
		for _, b := range job.pageBlocks(i) {
			hp.Blocks = append(hp.Blocks, hocrBlockFor(b, job.content(b.ID), bounds))
		}
		doc.Pages = append(doc.Pages, hp)
	}

	tmpl, err := template.New("hocr.tmpl").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
		"esc":  html.EscapeString,
		"bbox": formatBBox,
	}).ParseFS(hocrFS, "templates/hocr.tmpl")
	if err != nil {
		return "", fmt.Errorf("error parsing hOCR template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("error rendering hOCR template: %w", err)
	}
	return buf.String(), nil
}

// hocrBlockFor converts one block and its content into pixel geometry.
// Lines split the block box evenly top to bottom.
func hocrBlockFor(b *block.Block, content string, bounds image.Rectangle) hocrBlock {
	box := b.Box.Pixels(bounds)
	lines := contentLines(content)

	hb := hocrBlock{ID: b.ID, Box: box}
	if len(lines) == 0 {
		return hb
	}
	lineH := box.Dy() / len(lines)
	if lineH < 1 {
		lineH = 1
	}
	for k, line := range lines {
		top := box.Min.Y + k*lineH
		bottom := top + lineH
		if k == len(lines)-1 || bottom > box.Max.Y {
			bottom = box.Max.Y
		}
		hb.Lines = append(hb.Lines, hocrLine{
			Box:  image.Rect(box.Min.X, top, box.Max.X, bottom),
			Text: line,
		})
	}
	return hb
}

func formatBBox(r image.Rectangle) string {
	return fmt.Sprintf("bbox %d %d %d %d", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}
