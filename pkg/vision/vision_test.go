package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToNoop(t *testing.T) {
	eng, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "noop", eng.Name())

	eng, err = New(context.Background(), Config{Backend: "noop"})
	require.NoError(t, err)
	assert.Equal(t, "noop", eng.Name())
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported vision backend")
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(context.Background(), Config{Backend: "openai", Model: "gpt-4o"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(context.Background(), Config{Backend: "anthropic", Model: "claude"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewOllamaConstructs(t *testing.T) {
	eng, err := New(context.Background(), Config{Backend: "ollama", Model: "llava"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", eng.Name())
}

func TestNewDocAIRequiresProcessor(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "docai"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docai backend requires")
}

func TestNoopRecognize(t *testing.T) {
	text, err := Noop{}.Recognize(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Noop{}.Recognize(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
