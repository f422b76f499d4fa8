package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

const (
	anthropicAPIVersion  = "2023-06-01"
	AnthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens     = 8192
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicBackend calls the Anthropic Messages API over plain HTTP.
type AnthropicBackend struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	maxTokens  int
}

// NewAnthropicBackend returns a backend for model. An empty url uses the public API.
func NewAnthropicBackend(apiKey, model, url string, maxTokens int, client *http.Client) *AnthropicBackend {
	if url == "" {
		url = AnthropicMessagesURL
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if client == nil {
		client = &http.Client{}
	}
	return &AnthropicBackend{httpClient: client, url: url, apiKey: apiKey, model: model, maxTokens: maxTokens}
}

func (a *AnthropicBackend) Name() string { return "anthropic:" + a.model }

func (a *AnthropicBackend) AttemptFix(ctx context.Context, req Request) (string, error) {
	payload := anthropicRequest{
		Model:     a.model,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: UserPrompt(req)}},
		MaxTokens: a.maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	slog.Debug("Sending messages request", "provider", a.Name())
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryNetwork, "anthropic request failed").
			WithContext("provider", a.Name()).Retryable().Build()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to read anthropic response").Build()
	}

	if resp.StatusCode != http.StatusOK {
		b := ferrors.ProviderError(fmt.Sprintf("anthropic API returned status %d: %s", resp.StatusCode, snippet(respBody))).
			WithContext("provider", a.Name()).
			WithContext("status", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			b = b.RateLimit()
		}
		return "", b.Build()
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryProvider, "failed to parse anthropic response").Build()
	}
	if apiResp.Error != nil {
		return "", ferrors.ProviderError(fmt.Sprintf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)).Build()
	}

	if apiResp.StopReason == "max_tokens" {
		return "", truncatedError(a.Name(), apiResp.StopReason)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ferrors.ProviderError("anthropic response contained no text block").Build()
	}
	return text.String(), nil
}

// truncatedError reports a response cut off at the token limit. A partial
// file must never replace the original.
func truncatedError(provider, reason string) error {
	return ferrors.ProviderError("response truncated at the token limit").
		WithContext("provider", provider).
		WithContext("finish_reason", reason).
		Build()
}

func snippet(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
