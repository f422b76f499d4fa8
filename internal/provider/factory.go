package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/selfheal/internal/config"
	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
	"git.home.luguber.info/inful/selfheal/internal/metrics"
	"git.home.luguber.info/inful/selfheal/internal/retry"
)

// BackendsFromConfig builds backends in chain order. Backends whose
// credential is missing are skipped with a warning; an empty result is a
// configuration error.
func BackendsFromConfig(cfg *config.Config, client *http.Client) ([]Backend, error) {
	specs, err := cfg.Providers.BackendSpecs()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid provider chain").Build()
	}
	creds := cfg.Credentials
	ep := cfg.Providers.Endpoints
	maxTokens := cfg.Providers.MaxTokens

	var backends []Backend
	for _, spec := range specs {
		switch spec.Kind {
		case config.BackendGemini:
			if creds.GeminiAPIKey == "" {
				warnSkipped(spec, config.EnvGeminiAPIKey)
				continue
			}
			backends = append(backends, NewOpenAIBackend(OpenAIOptions{
				Name: spec.String(), Model: spec.Model, APIKey: creds.GeminiAPIKey,
				BaseURL: orDefault(ep.Gemini, GeminiOpenAIBaseURL), MaxTokens: maxTokens, HTTPClient: client,
			}))
		case config.BackendOpenAI:
			if creds.OpenAIAPIKey == "" {
				warnSkipped(spec, config.EnvOpenAIAPIKey)
				continue
			}
			backends = append(backends, NewOpenAIBackend(OpenAIOptions{
				Name: spec.String(), Model: spec.Model, APIKey: creds.OpenAIAPIKey,
				BaseURL: orDefault(ep.OpenAI, OpenAIBaseURL), MaxTokens: maxTokens, HTTPClient: client,
			}))
		case config.BackendOllama:
			// Ollama ignores the key but the client requires a non-empty one.
			backends = append(backends, NewOpenAIBackend(OpenAIOptions{
				Name: spec.String(), Model: spec.Model, APIKey: "ollama",
				BaseURL: orDefault(ep.Ollama, OllamaBaseURL), MaxTokens: maxTokens, HTTPClient: client,
			}))
		case config.BackendAnthropic:
			if creds.AnthropicAPIKey == "" {
				warnSkipped(spec, config.EnvAnthropicAPIKey)
				continue
			}
			backends = append(backends, NewAnthropicBackend(creds.AnthropicAPIKey, spec.Model, ep.Anthropic, maxTokens, client))
		default:
			return nil, ferrors.ConfigError(fmt.Sprintf("unsupported backend kind %q", spec.Kind)).Build()
		}
	}
	if len(backends) == 0 {
		return nil, ferrors.ConfigError("no usable fix backends: set credentials for at least one of " +
			strings.Join(cfg.Providers.Chain, ", ")).
			WithContext("chain", cfg.Providers.Chain).
			WithHint("export " + config.EnvGeminiAPIKey + ", " + config.EnvOpenAIAPIKey + " or " + config.EnvAnthropicAPIKey + ", or add an ollama backend to providers.chain").
			Build()
	}
	return backends, nil
}

// ChainFromConfig builds the configured chain.
func ChainFromConfig(cfg *config.Config, rec metrics.Recorder) (*Chain, error) {
	backends, err := BackendsFromConfig(cfg, nil)
	if err != nil {
		return nil, err
	}
	policy := retry.FromConfig(cfg.Providers.Retry)
	if err := policy.Validate(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid providers.retry").Build()
	}
	return NewChain(backends,
		WithLogWindow(cfg.Providers.LogWindow),
		WithRequestTimeout(cfg.Providers.RequestTimeoutDuration()),
		WithRetryPolicy(policy),
		WithRecorder(rec),
	), nil
}

func warnSkipped(spec config.BackendSpec, env string) {
	slog.Warn("Skipping backend without credentials", "provider", spec.String(), "env", env)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
