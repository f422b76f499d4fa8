package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	require.NoError(t, applyDefaults(&cfg))
	require.NoError(t, ValidateConfig(&cfg))
	return &cfg
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty build command", func(c *Config) { c.Build.Command = "  " }, "build.command"},
		{"bad build timeout", func(c *Config) { c.Build.Timeout = "soon" }, "build.timeout"},
		{"absolute app dir", func(c *Config) { c.Workspace.AppDir = "/abs" }, "app_dir"},
		{"escaping app dir", func(c *Config) { c.Workspace.AppDir = "../other" }, "escapes"},
		{"empty chain", func(c *Config) { c.Providers.Chain = nil }, "providers.chain"},
		{"empty model", func(c *Config) { c.Providers.Chain = []string{"openai:"} }, "no model"},
		{"zero retries", func(c *Config) { c.Repair.MaxRetries = 0 }, "max_retries"},
		{"bad branch prefix", func(c *Config) { c.Publish.BranchPrefix = "auto fix" }, "branch_prefix"},
		{"duplicate strategy", func(c *Config) {
			c.Analyzer.Strategies = []LocatorStrategy{LocatorDiagnostic, LocatorDiagnostic}
		}, "twice"},
		{"bad extension", func(c *Config) { c.Analyzer.Extensions = []string{"t s"} }, "extensions"},
		{"notify without url", func(c *Config) { c.Notify.Enabled = true; c.Notify.URL = "" }, "notify.url"},
		{"bad watch interval", func(c *Config) { c.Watch.Interval = "-1m" }, "watch.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseBackendSpec(t *testing.T) {
	tests := []struct {
		in   string
		want BackendSpec
	}{
		{"gemini-2.5-flash", BackendSpec{Kind: BackendGemini, Model: "gemini-2.5-flash"}},
		{"openai:gpt-4o-mini", BackendSpec{Kind: BackendOpenAI, Model: "gpt-4o-mini"}},
		{"Claude:claude-sonnet-4", BackendSpec{Kind: BackendAnthropic, Model: "claude-sonnet-4"}},
		{"ollama:qwen2.5-coder:7b", BackendSpec{Kind: BackendOllama, Model: "qwen2.5-coder:7b"}},
		{"llama3:8b", BackendSpec{Kind: BackendGemini, Model: "llama3:8b"}},
	}
	for _, tt := range tests {
		got, err := ParseBackendSpec(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseBackendSpec(" ")
	assert.Error(t, err)
	assert.Equal(t, "openai:gpt-4o", BackendSpec{Kind: BackendOpenAI, Model: "gpt-4o"}.String())
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel(" WARNING "))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("loud"))
	assert.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff("Exponential"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("random"))
	s, err := ParseLocatorStrategy("shortest")
	require.NoError(t, err)
	assert.Equal(t, LocatorShortestPath, s)
}
