// Package bearer implements the prompt-style providers that post {model, prompt}
// with a bearer token: the generate variant (grok) and the completion variant (claude).
package bearer

import (
	"context"
	"net/http"
	"strings"

	"privatepilot/internal/extract"
	"privatepilot/internal/providers"
	"privatepilot/internal/providers/httpjson"
)

// Response fields read by each variant, highest priority first.
var (
	GenerateFields   = []string{"response"}
	CompletionFields = []string{"completion", "response"}
)

const (
	DefaultGenerateModel   = "latest"
	DefaultCompletionModel = "claude-3-opus-20240229"
)

type Config struct {
	// Name labels errors and metrics, e.g. "grok".
	Name     string
	Endpoint string
	APIKey   string
	Model    string
	// Fields is the response field priority list.
	Fields     []string
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

// New does not default the endpoint; an empty one fails at call time.
func New(cfg Config) *Client {
	if len(cfg.Fields) == 0 {
		cfg.Fields = GenerateFields
	}
	if cfg.Name == "" {
		cfg.Name = "bearer"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpjson.DefaultClient()
	}
	return &Client{cfg: cfg}
}

// NewGenerate builds the bearer-generate (grok) variant.
func NewGenerate(endpoint, apiKey, model string, client *http.Client) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultGenerateModel
	}
	return New(Config{
		Name:       string(providers.KindGrok),
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		Fields:     GenerateFields,
		HTTPClient: client,
	})
}

// NewCompletion builds the bearer-completion (claude) variant.
func NewCompletion(endpoint, apiKey, model string, client *http.Client) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultCompletionModel
	}
	return New(Config{
		Name:       string(providers.KindClaude),
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		Fields:     CompletionFields,
		HTTPClient: client,
	})
}

var _ providers.Provider = (*Client)(nil)

type promptRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", providers.ErrEmptyPrompt
	}
	body, err := httpjson.Post(ctx, c.cfg.HTTPClient, httpjson.Request{
		Provider: c.cfg.Name,
		URL:      c.cfg.Endpoint,
		APIKey:   c.cfg.APIKey,
		Payload:  promptRequest{Model: c.cfg.Model, Prompt: prompt},
	})
	if err != nil {
		return "", err
	}
	text, err := httpjson.LookupString(body, c.cfg.Fields...)
	if err != nil {
		return "", httpjson.Malformed(c.cfg.Name, body, err)
	}
	return extract.Code(text), nil
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Model returns the model the client requests.
func (c *Client) Model() string { return c.cfg.Model }
