// Package llm provides the Ollama (local LLM) implementation of the Provider interface.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/veritrust/veritrust/internal/config"
)

// OllamaProvider implements Provider using a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg *config.LLMConfig) (*OllamaProvider, error) {
	baseURL := cfg.OllamaURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "llama3"
	}

	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaGenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Format  string   `json:"format,omitempty"`
	Images  []string `json:"images,omitempty"` // base64, multimodal models only
	Stream  bool     `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// GenerateJSON generates a structured completion via the local Ollama server.
func (p *OllamaProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.Schema != nil {
		system += "\n\nRespond with a single JSON object that matches this schema exactly. " +
			"Include every required field. Output raw JSON only, no surrounding prose.\n" +
			req.Schema.JSONSpec()
	}

	reqBody := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: req.Prompt,
		System: system,
		Format: "json",
		Stream: false,
	}
	reqBody.Options.Temperature = req.Temperature

	if req.Media != nil {
		if !strings.HasPrefix(req.Media.MIMEType, "image/") {
			return "", fmt.Errorf("Ollama provider supports inline image media only, got %s", req.Media.MIMEType)
		}
		reqBody.Images = []string{base64.StdEncoding.EncodeToString(req.Media.Data)}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("Ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", result.Error)
	}

	if strings.TrimSpace(result.Response) == "" {
		return "", fmt.Errorf("%w: Ollama returned no content", ErrEmptyReply)
	}

	return result.Response, nil
}
