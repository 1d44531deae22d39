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
	"time"
)

type openaiCompatible struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenAICompatible(apiKey, baseURL, model string, timeout time.Duration) LLM {
	return &openaiCompatible{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *openaiCompatible) Model() string {
	return o.model
}

func (o *openaiCompatible) Endpoint() string {
	return o.baseURL
}

func (o *openaiCompatible) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	var oaiMessages []openaiMessage

	if systemPrompt != "" {
		oaiMessages = append(oaiMessages, openaiMessage{Role: "system", Content: systemPrompt})
	}

	for _, msg := range messages {
		oaiMessages = append(oaiMessages, convertOpenAIMessage(msg))
	}

	jsonBody, err := json.Marshal(openaiRequest{
		Model:     o.model,
		Messages:  oaiMessages,
		MaxTokens: 512,
	})
	if err != nil {
		return "", fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	for attempt := range maxRetries {
		content, status, err := o.post(ctx, jsonBody)
		if err == nil {
			return content, nil
		}

		if !isRetryableStatus(status) || attempt == maxRetries-1 {
			return "", err
		}

		if err := backoff(ctx, attempt); err != nil {
			return "", fmt.Errorf("openai: %w", err)
		}
	}

	return "", fmt.Errorf("openai: retries exhausted")
}

func (o *openaiCompatible) post(ctx context.Context, jsonBody []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", 0, fmt.Errorf("openai: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("openai: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("openai: api error (status %d): %s", resp.StatusCode, string(body))
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(body, &oaiResp); err != nil {
		return "", resp.StatusCode, fmt.Errorf("openai: failed to decode response: %w", err)
	}

	if oaiResp.Error != nil {
		return "", resp.StatusCode, fmt.Errorf("openai: api error: %s", oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("openai: no choices in response")
	}

	return oaiResp.Choices[0].Message.Content, resp.StatusCode, nil
}

func convertOpenAIMessage(msg Message) openaiMessage {
	role := msg.Role
	if role == "" {
		role = "user"
	}

	if len(msg.Images) == 0 {
		return openaiMessage{Role: role, Content: msg.Content}
	}

	parts := make([]openaiContentPart, 0, len(msg.Images)+1)
	for _, img := range msg.Images {
		parts = append(parts, openaiContentPart{
			Type: "image_url",
			ImageURL: &openaiImageURL{
				URL: "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}

	if msg.Content != "" {
		parts = append(parts, openaiContentPart{Type: "text", Text: msg.Content})
	}

	return openaiMessage{Role: role, Content: parts}
}
