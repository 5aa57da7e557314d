package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblePDF(t *testing.T) {
	data, err := AssemblePDF(sampleJob(t), DefaultPDFConfig())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 500)
	// The toggleable layer shows up as an optional content group.
	assert.Contains(t, string(data), "/OCG")
}

func TestAssemblePDFDebugLayer(t *testing.T) {
	cfg := DefaultPDFConfig()
	cfg.Debug = true

	data, err := AssemblePDF(sampleJob(t), cfg)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestAssemblePDFRejectsBadImage(t *testing.T) {
	job := sampleJob(t)
	job.Pages[0].Image = []byte("not an image")

	_, err := AssemblePDF(job, DefaultPDFConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid image data")
}

func TestAssemblePDFDefaultsEmptyConfig(t *testing.T) {
	data, err := AssemblePDF(sampleJob(t), PDFConfig{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}
