// Package ollama implements the local generate-style provider (POST /api/generate).
package ollama

import (
	"context"
	"net/http"
	"strings"

	"privatepilot/internal/extract"
	"privatepilot/internal/providers"
	"privatepilot/internal/providers/httpjson"
)

const (
	DefaultEndpoint = "http://localhost:11434/api/generate"
	DefaultModel    = "llama2"
)

type Config struct {
	Endpoint   string
	Model      string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

// New fills in the loopback endpoint and default model when they are empty.
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

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", providers.ErrEmptyPrompt
	}
	body, err := httpjson.Post(ctx, c.cfg.HTTPClient, httpjson.Request{
		Provider: string(providers.KindOllama),
		URL:      c.cfg.Endpoint,
		Payload:  generateRequest{Model: c.cfg.Model, Prompt: prompt, Stream: false},
	})
	if err != nil {
		return "", err
	}
	text, err := httpjson.LookupString(body, "response")
	if err != nil {
		return "", httpjson.Malformed(string(providers.KindOllama), body, err)
	}
	return extract.Code(text), nil
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Model returns the model the client requests.
func (c *Client) Model() string { return c.cfg.Model }
