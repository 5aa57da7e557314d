package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// llmEngine runs OCR through a vision LLM.
type llmEngine struct {
	backend     string
	model       string
	llm         llms.Model
	maxTokens   int
	temperature *float64
}

func newLLM(cfg Config) (*llmEngine, error) {
	backend := strings.ToLower(cfg.Backend)

	var model llms.Model
	var err error
	switch backend {
	case "openai":
		model, err = newOpenAI(cfg)
	case "ollama":
		model, err = newOllama(cfg)
	case "anthropic":
		model, err = newAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", backend, err)
	}

	return &llmEngine{
		backend:     backend,
		model:       cfg.Model,
		llm:         model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func newOpenAI(cfg Config) (llms.Model, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not set")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func newOllama(cfg Config) (llms.Model, error) {
	host := cfg.ServerURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(host),
	)
}

func newAnthropic(cfg Config) (llms.Model, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is not set")
	}
	return anthropic.New(
		anthropic.WithModel(cfg.Model),
		anthropic.WithToken(apiKey),
	)
}

func (e *llmEngine) Name() string { return e.backend }

// Recognize sends the image and prompt as one human message. OpenAI takes
// images as data URLs, the binary part format covers the rest.
func (e *llmEngine) Recognize(ctx context.Context, req Request) (string, error) {
	var imagePart llms.ContentPart
	if e.backend == "openai" {
		imagePart = llms.ImageURLPart(
			"data:" + req.MIME + ";base64," + base64.StdEncoding.EncodeToString(req.Image))
	} else {
		imagePart = llms.BinaryPart(req.MIME, req.Image)
	}

	var callOpts []llms.CallOption
	if e.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(e.maxTokens))
	}
	if e.temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(*e.temperature))
	}

	completion, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{imagePart, llms.TextPart(req.Prompt)},
		},
	}, callOpts...)
	if err != nil {
		return "", fmt.Errorf("error getting response from LLM: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", e.backend)
	}
	return completion.Choices[0].Content, nil
}
