// Package llm talks to the text-generation providers used for advice and
// label scanning.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConfigured occurs when no provider credentials are available
var ErrNotConfigured = errors.New("llm provider not configured")

// Config for a provider
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Image attached to a user message
type Image struct {
	Data      []byte
	MediaType string
}

// Message in a conversation
type Message struct {
	Role    string
	Content string
	Images  []Image
}

// LLM is a chat-style text generator
type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
	// Model identifies the model answering requests
	Model() string
	// Endpoint identifies where requests are sent
	Endpoint() string
}

// OpenAI-compatible providers and their base URLs
var openAICompatibleProviders = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"mistral":  "https://api.mistral.ai/v1",
	"groq":     "https://api.groq.com/openai/v1",
	"together": "https://api.together.xyz/v1",
}

var defaultModels = map[string]string{
	"claude": "claude-sonnet-4-20250514",
	"openai": "gpt-4o-mini",
	"ollama": "qwen2:0.5b",
}

// New creates the provider named by cfg
func New(cfg Config) (LLM, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Provider]
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch cfg.Provider {
	case "claude", "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude: %w", ErrNotConfigured)
		}

		return newClaude(cfg.APIKey, model, cfg.BaseURL, timeout), nil

	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}

		return newOpenAICompatible("ollama", baseURL+"/v1", model, timeout), nil

	default:
		baseURL, ok := openAICompatibleProviders[cfg.Provider]
		if !ok && cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
		}

		if cfg.BaseURL != "" {
			baseURL = cfg.BaseURL
		}

		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNotConfigured)
		}

		return newOpenAICompatible(cfg.APIKey, baseURL, model, timeout), nil
	}
}

const maxRetries = 3
const baseDelay = time.Second

func isRetryableStatus(code int) bool {
	return code == 529 || code == http.StatusServiceUnavailable || code == http.StatusBadGateway || code == http.StatusInternalServerError || code == http.StatusTooManyRequests
}

// backoff waits before retry attempt, or returns early when ctx ends
func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(baseDelay * time.Duration(1<<attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
