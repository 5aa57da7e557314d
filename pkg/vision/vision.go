// Package vision sends composed strip images to an OCR backend and
// governs the calls around it.
//
// Key Features:
//   - Polymorphic engines: Google Document AI, vision LLMs through
//     langchaingo (OpenAI, Ollama, Anthropic) and a noop engine, all
//     behind one interface; a Tesseract engine lives in the tesseract
//     subpackage so its cgo dependency stays optional
//   - Call governor: per-call timeout, bounded retry backoff for
//     transient failures and a requests-per-minute throttle
//
// Main Functions:
//   - New: builds the engine selected by configuration
//   - NewCaller: wraps an engine with the call governor
//   - Caller.Call: one governed OCR call
package vision

import (
	"context"
	"fmt"
	"strings"
)

// Request is one OCR call: an encoded image and the instruction that
// accompanies it on prompt-driven backends.
type Request struct {
	Image  []byte
	MIME   string
	Prompt string
}

// Engine is one OCR backend.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request) (string, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend     string   `yaml:"backend"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`

	// API backends
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// Ollama
	ServerURL string `yaml:"server_url"`

	// Document AI
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`

	// DumpDir, when set, receives the raw backend response of every call
	// for debugging.
	DumpDir string `yaml:"dump_dir"`
}

// New builds the engine named by cfg.Backend. The tesseract backend is
// wired by the command layer instead, keeping the cgo dependency out of
// API-only builds.
func New(ctx context.Context, cfg Config) (Engine, error) {
	switch strings.ToLower(cfg.Backend) {
	case "docai":
		return newDocAI(ctx, cfg)
	case "openai", "ollama", "anthropic":
		return newLLM(cfg)
	case "", "noop":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported vision backend: %s", cfg.Backend)
	}
}

// Noop is an engine that recognizes nothing. It keeps dry runs and
// plumbing tests off the network.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Recognize(ctx context.Context, _ Request) (string, error) {
	return "", ctx.Err()
}
