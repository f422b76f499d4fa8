package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names read by LoadCredentials.
const (
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGitHubToken     = "GITHUB_TOKEN"
	EnvRepoURL         = "REPO_URL"
	EnvGitUsername     = "GIT_USERNAME"
	EnvLogLevel        = "SELFHEAL_LOG_LEVEL"
)

// Credentials holds secrets injected through the environment.
type Credentials struct {
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GitHubToken     string
	RepoURL         string
	GitUsername     string
}

// LoadCredentials reads credentials from the process environment.
func LoadCredentials() Credentials {
	return Credentials{
		GeminiAPIKey:    strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)),
		OpenAIAPIKey:    strings.TrimSpace(os.Getenv(EnvOpenAIAPIKey)),
		AnthropicAPIKey: strings.TrimSpace(os.Getenv(EnvAnthropicAPIKey)),
		GitHubToken:     strings.TrimSpace(os.Getenv(EnvGitHubToken)),
		RepoURL:         strings.TrimSpace(os.Getenv(EnvRepoURL)),
		GitUsername:     strings.TrimSpace(os.Getenv(EnvGitUsername)),
	}
}

// envFiles are tried in order; the first one found is loaded.
var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads the first available .env file. Existing process
// environment variables are not overwritten.
func loadEnvFile() (string, error) {
	for _, p := range envFiles {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return "", errors.New("no .env file found")
}
