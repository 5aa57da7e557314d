// Package tesseract backs the vision layer with a local Tesseract
// install through gosseract. It lives in its own package so the cgo
// dependency only links into builds that import it; the command layer
// wires it in when the tesseract backend is selected.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ocrstitch/ocrstitch/pkg/vision"
)

// Engine implements vision.Engine with a per-call gosseract client.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

var _ vision.Engine = (*Engine)(nil)

// New constructs a Tesseract-backed engine. Languages follow Tesseract's
// traineddata names; none means the install default.
func New(languages ...string) *Engine {
	return &Engine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs OCR on the request image. Tesseract itself is
// synchronous; the context is honored between setup steps.
func (e *Engine) Recognize(ctx context.Context, req vision.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(req.Image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
