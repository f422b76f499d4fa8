package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"

	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// Default base URLs for OpenAI-compatible endpoints.
const (
	GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	OpenAIBaseURL       = "https://api.openai.com/v1"
	OllamaBaseURL       = "http://localhost:11434/v1"
)

// OpenAIBackend talks to any OpenAI-compatible chat completion endpoint
// (OpenAI, the Gemini compatibility endpoint, Ollama).
type OpenAIBackend struct {
	name      string
	model     string
	maxTokens int
	client    *openai.Client
}

// OpenAIOptions configures an OpenAIBackend.
type OpenAIOptions struct {
	Name       string // kind:model, used in logs
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
}

// NewOpenAIBackend builds a backend for an OpenAI-compatible endpoint.
func NewOpenAIBackend(opts OpenAIOptions) *OpenAIBackend {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	name := opts.Name
	if name == "" {
		name = "openai:" + opts.Model
	}
	return &OpenAIBackend{
		name:      name,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		client:    openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAIBackend) Name() string { return o.name }

func (o *OpenAIBackend) AttemptFix(ctx context.Context, req Request) (string, error) {
	creq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req)},
		},
	}
	if o.maxTokens > 0 {
		creq.MaxTokens = o.maxTokens
	}

	slog.Debug("Sending chat completion", "provider", o.name)
	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		b := ferrors.WrapError(err, ferrors.CategoryProvider, "chat completion failed").
			WithContext("provider", o.name).
			Retryable()
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			b = b.WithContext("status", apiErr.HTTPStatusCode)
			switch apiErr.HTTPStatusCode {
			case http.StatusTooManyRequests:
				b = b.RateLimit()
			case http.StatusUnauthorized, http.StatusForbidden:
				b = b.WithCategory(ferrors.CategoryAuth).UserAction()
			}
		}
		return "", b.Build()
	}
	if len(resp.Choices) == 0 {
		return "", ferrors.ProviderError("no choices returned").WithContext("provider", o.name).Build()
	}
	choice := resp.Choices[0]
	slog.Debug("Received chat completion", "provider", o.name, "finish_reason", choice.FinishReason)
	if choice.FinishReason == openai.FinishReasonLength {
		return "", truncatedError(o.name, string(choice.FinishReason))
	}
	return choice.Message.Content, nil
}
