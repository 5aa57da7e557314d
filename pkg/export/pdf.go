package export

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// FontConfig contains font settings for the text layer.
type FontConfig struct {
	Name        string  // font name (e.g. "Helvetica")
	Style       string  // font style ("", "B", "I", "BI")
	Size        float64 // base font size before per-line scaling
	AscentRatio float64 // vertical positioning ratio
}

// DefaultFont is Helvetica, which renders reliably in the hidden layer.
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	Size:        10,
	AscentRatio: 0.718,
}

// PDFConfig holds options for searchable-PDF assembly.
type PDFConfig struct {
	Debug     bool   // render the text layer visibly in red with line boxes
	LayerName string // base name of the text layer, page number appended
	Font      FontConfig
}

// DefaultPDFConfig returns the production assembly settings.
func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		LayerName: "OCR Text",
		Font:      DefaultFont,
	}
}

// AssemblePDF builds a searchable PDF from a finished job: every page
// image full-bleed on a page of matching point size, overlaid with an
// invisible text layer positioned at block geometry. The text is
// searchable and selectable, and the layer can be toggled in compatible
// readers.
func AssemblePDF(job *Job, cfg PDFConfig) ([]byte, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	if cfg.LayerName == "" {
		cfg.LayerName = DefaultPDFConfig().LayerName
	}
	if cfg.Font == (FontConfig{}) {
		cfg.Font = DefaultFont
	}

	pdf := fpdf.New("P", "pt", "A4", "")

	for i, page := range job.Pages {
		imageType, err := detectImageType(page.Image)
		if err != nil {
			return nil, fmt.Errorf("page %d has invalid image data: %w", i+1, err)
		}

		w, h := float64(page.Width), float64(page.Height)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

		imageName := fmt.Sprintf("img%d", i)
		opts := fpdf.ImageOptions{ReadDpi: false, ImageType: imageType}
		pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(page.Image))
		pdf.ImageOptions(imageName, 0, 0, w, h, false, opts, 0, "")

		if err := drawTextLayer(pdf, job, i, w, h, cfg); err != nil {
			return nil, fmt.Errorf("failed to draw text layer for page %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// drawTextLayer draws one page's recognized content onto a toggleable
// layer. Each block's lines are distributed evenly over the block box and
// scaled so every line fills the block width.
func drawTextLayer(pdf *fpdf.Fpdf, job *Job, pageNum int, w, h float64, cfg PDFConfig) error {
	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", cfg.LayerName, pageNum+1), true)
	pdf.BeginLayer(layer)
	defer pdf.EndLayer()

	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, cfg.Font.Size)
	if cfg.Debug {
		pdf.SetTextColor(255, 0, 0)
	} else {
		pdf.SetAlpha(0.0, "Normal") // hide text from normal view
	}

	encodingErrors := 0
	lineCount := 0
	for _, b := range job.pageBlocks(pageNum) {
		lines := contentLines(job.content(b.ID))
		if len(lines) == 0 {
			continue
		}
		box := b.Box
		top := box.Top * h
		left := box.Left * w
		width := (box.Right - box.Left) * w
		lineHeight := (box.Bottom - box.Top) * h / float64(len(lines))

		for k, line := range lines {
			drawLine(pdf, line, left, top+float64(k)*lineHeight, width, lineHeight, cfg, &encodingErrors)
			lineCount++
		}
	}

	if lineCount > 0 && encodingErrors > lineCount/10 {
		return fmt.Errorf("character encoding issues in %d of %d lines", encodingErrors, lineCount)
	}
	return nil
}

// drawLine renders one content line, scaled so its width matches the
// block width the way the page shows it.
func drawLine(pdf *fpdf.Fpdf, line string, x, y, width, height float64, cfg PDFConfig, encodingErrors *int) {
	// Convert to ISO-8859-1 to avoid PDF string encoding issues.
	latin1, err := charmap.ISO8859_1.NewEncoder().String(line)
	if err != nil {
		*encodingErrors++
		latin1 = line
	}

	strWidth := pdf.GetStringWidth(latin1)
	if strWidth > 0 {
		pdf.SetFontSize(cfg.Font.Size * width / strWidth)
	}

	fontSize, _ := pdf.GetFontSize()
	baseline := y + fontSize*cfg.Font.AscentRatio

	pdf.Text(x, baseline, latin1)
	pdf.SetFontSize(cfg.Font.Size)

	if cfg.Debug {
		pdf.Rect(x, y, width, height, "D")
	}
}

// detectImageType figures out whether the data is PNG, JPEG, etc.
func detectImageType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image config: %w", err)
	}
	return strings.ToUpper(format), nil
}
