package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ocrstitch/ocrstitch/pkg/block"
	"github.com/ocrstitch/ocrstitch/pkg/reconcile"
)

//go:embed templates/report.tmpl
var reportFS embed.FS

// markdown renders recognized content that is not already markup. Unsafe
// rendering keeps inline HTML the model produced inside markdown content.
var markdown = goldmark.New(goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()))

type reportRow struct {
	ID      string
	Page    int
	Kind    string
	Status  string
	Method  string
	Score   int
	Content template.HTML
	Note    string
}

type reportData struct {
	Title     string
	Generated string
	OK        int
	Missing   int
	Failed    int
	Rows      []reportRow
}

// GenerateReport renders a finished job as a single static HTML page for
// review: one row per block with status, match method, score and the
// recognized content.
func GenerateReport(job *Job) (string, error) {
	if err := job.validate(); err != nil {
		return "", err
	}

	byID := make(map[string]*block.Block, len(job.Layout.Blocks))
	for _, b := range job.Layout.Blocks {
		byID[b.ID] = b
	}

	data := reportData{
		Title:     job.Layout.Name,
		Generated: time.Now().UTC().Format(time.RFC1123),
	}
	if data.Title == "" {
		data.Title = "OCR job"
	}
	data.OK, data.Missing, data.Failed = job.Results.Counts()

	for _, id := range job.Results.IDs() {
		b, known := byID[id]
		if !known {
			continue
		}
		row := reportRow{
			ID:   id,
			Page: b.Page + 1,
			Kind: string(b.Kind),
		}
		r, found := job.Results.Get(id)
		switch {
		case found && r.Kind == reconcile.KindOK:
			fragment, err := renderFragment(r.Content)
			if err != nil {
				return "", fmt.Errorf("block %s: %w", id, err)
			}
			row.Status = r.Kind.String()
			row.Method = string(r.Method)
			row.Score = r.Score
			row.Content = fragment
		case found:
			row.Status = r.Kind.String()
			row.Note = r.Content
		default:
			row.Status = reconcile.KindMissing.String()
			row.Note = "no content recognized"
		}
		data.Rows = append(data.Rows, row)
	}

	tmpl, err := template.New("report.tmpl").ParseFS(reportFS, "templates/report.tmpl")
	if err != nil {
		return "", fmt.Errorf("error parsing report template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error rendering report template: %w", err)
	}
	return buf.String(), nil
}

// renderFragment converts one block's content into a report fragment.
// Markup from the model (tables, figures) passes through untouched; plain
// content renders as markdown.
func renderFragment(content string) (template.HTML, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, "<") {
		return template.HTML(trimmed), nil
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(trimmed), &buf); err != nil {
		return "", fmt.Errorf("failed to render content: %w", err)
	}
	return template.HTML(buf.String()), nil
}
