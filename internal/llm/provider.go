// Package llm provides a pluggable interface for structured-output LLM providers.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veritrust/veritrust/internal/config"
)

// Sentinel errors for the distinct remote failure classes. Callers must be
// able to tell an authentication rejection and an empty reply apart from a
// generic network failure, and must never retry the former two.
var (
	// ErrAuth indicates the provider rejected the configured credential.
	ErrAuth = errors.New("llm: authentication failed")

	// ErrEmptyReply indicates the provider returned a well-formed response
	// with no usable text body.
	ErrEmptyReply = errors.New("llm: empty reply")
)

// Schema declares the output shape requested from the model: field names,
// primitive types and the required subset. It is advisory to the model;
// local enforcement happens in the normalizer.
type Schema struct {
	Type        string             `json:"type"` // object, string, number, integer, boolean, array
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// JSONSpec renders the schema as a compact JSON document for providers that
// cannot accept a structured schema natively and need it embedded in the
// system prompt instead.
func (s *Schema) JSONSpec() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// InlineMedia is an inline binary payload accompanying a prompt.
type InlineMedia struct {
	MIMEType string
	Data     []byte
}

// Request describes one structured-generation call.
type Request struct {
	System      string
	Prompt      string
	Media       *InlineMedia
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// DefaultRequest returns a request with sensible generation defaults.
func DefaultRequest() Request {
	return Request{
		MaxTokens:   4096,
		Temperature: 0.0,
	}
}

// Provider defines the interface for LLM providers. Implementations request
// that the reply body be raw JSON text matching req.Schema, with no
// surrounding prose, and return that text verbatim.
type Provider interface {
	// GenerateJSON generates a structured completion for the given request.
	GenerateJSON(ctx context.Context, req Request) (string, error)

	// Name returns the provider name.
	Name() string
}

// NewProvider creates a new LLM provider based on configuration.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
