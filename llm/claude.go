package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeEndpoint = "https://api.anthropic.com"

type claude struct {
	client   anthropic.Client
	model    string
	endpoint string
}

func newClaude(apiKey, model, baseURL string, timeout time.Duration) LLM {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}

	endpoint := claudeEndpoint
	if baseURL != "" {
		endpoint = strings.TrimRight(baseURL, "/")
		opts = append(opts, option.WithBaseURL(endpoint))
	}

	return &claude{
		client:   anthropic.NewClient(opts...),
		model:    model,
		endpoint: endpoint,
	}
}

func (c *claude) Model() string {
	return c.model
}

func (c *claude) Endpoint() string {
	return c.endpoint
}

func (c *claude) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		Messages:  c.convertMessages(messages),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	var resp *anthropic.Message
	var err error
	for attempt := range maxRetries {
		resp, err = c.client.Messages.New(ctx, params)
		if err == nil {
			break
		}

		if !isRetryableError(err) || attempt == maxRetries-1 {
			return "", fmt.Errorf("claude: %w", err)
		}

		if err := backoff(ctx, attempt); err != nil {
			return "", fmt.Errorf("claude: %w", err)
		}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return text.String(), nil
}

func (c *claude) convertMessages(messages []Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		for _, img := range msg.Images {
			blocks = append(blocks, anthropic.NewImageBlockBase64(
				img.MediaType,
				base64.StdEncoding.EncodeToString(img.Data),
			))
		}

		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}

		result = append(result, anthropic.NewUserMessage(blocks...))
	}

	return result
}

func isRetryableError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.StatusCode)
	}

	errStr := err.Error()
	return strings.Contains(errStr, "overloaded") || strings.Contains(errStr, "Overloaded")
}
