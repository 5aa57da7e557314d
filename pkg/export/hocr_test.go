package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateHOCR(t *testing.T) {
	doc, err := GenerateHOCR(sampleJob(t))
	require.NoError(t, err)

	assert.Contains(t, doc, `class="ocr_page"`)
	assert.Contains(t, doc, `id="page_1"`)
	assert.Contains(t, doc, `ppageno 0`)
	assert.Contains(t, doc, `image &quot;page-0001.png&quot;; bbox 0 0 200 200`)

	// blk-alpha box is 20,10 to 180,60; two lines split it at y=35.
	assert.Contains(t, doc, `id="blk-alpha" title="bbox 20 10 180 60"`)
	assert.Contains(t, doc, `<span class="ocr_line" title="bbox 20 10 180 35">First line</span>`)
	assert.Contains(t, doc, `<span class="ocr_line" title="bbox 20 35 180 60">Fish &amp; chips</span>`)

	// Table content flattens to cell text.
	assert.Contains(t, doc, `id="blk-beta"`)
	assert.Contains(t, doc, `>42 17</span>`)

	// Unresolved blocks stay out of the document.
	assert.NotContains(t, doc, "blk-gamma")
	assert.NotContains(t, doc, "blk-delta")
}

func TestGenerateHOCRStructure(t *testing.T) {
	doc, err := GenerateHOCR(sampleJob(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Equal(t, 1, strings.Count(doc, `class="ocr_page"`))
	assert.Equal(t, 2, strings.Count(doc, `class="ocr_carea"`))
	assert.Equal(t, 2, strings.Count(doc, `class="ocr_par"`))
	assert.Equal(t, 3, strings.Count(doc, `class="ocr_line"`))
}

func TestGenerateHOCRRejectsEmptyJob(t *testing.T) {
	_, err := GenerateHOCR(&Job{})
	require.Error(t, err)
}
