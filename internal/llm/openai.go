// Package llm provides the OpenAI implementation of the Provider interface.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/veritrust/veritrust/internal/config"
)

// OpenAIProvider implements Provider using the OpenAI chat API. The output
// schema is embedded in the system prompt and JSON mode is enabled, since
// the chat API has no direct responseSchema equivalent for this use.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg *config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: client,
		model:  model,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// GenerateJSON generates a structured completion via the OpenAI API.
func (p *OpenAIProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.Schema != nil {
		system += "\n\nRespond with a single JSON object that matches this schema exactly. " +
			"Include every required field. Output raw JSON only, no surrounding prose.\n" +
			req.Schema.JSONSpec()
	}

	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	if req.Media != nil {
		if !strings.HasPrefix(req.Media.MIMEType, "image/") {
			return "", fmt.Errorf("OpenAI provider supports inline image media only, got %s", req.Media.MIMEType)
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", req.Media.MIMEType,
			base64.StdEncoding.EncodeToString(req.Media.Data))
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			},
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403) {
			return "", fmt.Errorf("%w: %v", ErrAuth, apiErr.Message)
		}
		return "", fmt.Errorf("OpenAI completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: OpenAI returned no choices", ErrEmptyReply)
	}

	return resp.Choices[0].Message.Content, nil
}
