package openai_compat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"privatepilot/internal/extract"
	"privatepilot/internal/providers"
	"privatepilot/internal/providers/httpjson"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-3.5-turbo"
)

var errNoContent = errors.New("missing choices[0].message.content")

type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpjson.DefaultClient()
	}
	return &Client{cfg: cfg}
}

var _ providers.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", providers.ErrEmptyPrompt
	}
	body, err := httpjson.Post(ctx, c.cfg.HTTPClient, httpjson.Request{
		Provider: string(providers.KindOpenAI),
		URL:      c.cfg.Endpoint,
		APIKey:   c.cfg.APIKey,
		Payload:  c.buildPayload(prompt),
	})
	if err != nil {
		return "", err
	}
	text, err := parseChatCompletions(body)
	if err != nil {
		return "", httpjson.Malformed(string(providers.KindOpenAI), body, err)
	}
	return extract.Code(text), nil
}

func (c *Client) buildPayload(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
}

func parseChatCompletions(body []byte) (string, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoContent
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		content = joinParts(resp.Choices[0].Message.MultiContent)
	}
	if strings.TrimSpace(content) == "" {
		return "", errNoContent
	}
	return content, nil
}

func joinParts(parts []openai.ChatMessagePart) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == openai.ChatMessagePartTypeText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Model returns the model the client requests.
func (c *Client) Model() string { return c.cfg.Model }
