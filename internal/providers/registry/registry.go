package registry

import (
	"net/http"

	"privatepilot/internal/providers"
	"privatepilot/internal/providers/bearer"
	"privatepilot/internal/providers/ollama"
	"privatepilot/internal/providers/openai_compat"
)

// Endpoint is the per-provider settings subset.
type Endpoint struct {
	URL    string
	APIKey string
	Model  string
}

// Settings is everything the selector reads. Zero values fall back to per-kind defaults.
type Settings struct {
	Provider   string
	Ollama     Endpoint
	OpenAI     Endpoint
	Grok       Endpoint
	Claude     Endpoint
	HTTPClient *http.Client
}

// EndpointFor returns the settings subset used by kind.
func (s Settings) EndpointFor(kind providers.Kind) Endpoint {
	switch kind {
	case providers.KindOpenAI:
		return s.OpenAI
	case providers.KindGrok:
		return s.Grok
	case providers.KindClaude:
		return s.Claude
	default:
		return s.Ollama
	}
}

// WithAPIKey returns a copy of s with kind's API key replaced.
func (s Settings) WithAPIKey(kind providers.Kind, key string) Settings {
	switch kind {
	case providers.KindOpenAI:
		s.OpenAI.APIKey = key
	case providers.KindGrok:
		s.Grok.APIKey = key
	case providers.KindClaude:
		s.Claude.APIKey = key
	}
	return s
}

// Select builds the provider named by settings.Provider. Unknown or empty names
// select the local ollama provider.
func Select(settings Settings) providers.Provider {
	kind := providers.ParseKind(settings.Provider)
	ep := settings.EndpointFor(kind)

	switch kind {
	case providers.KindOpenAI:
		return openai_compat.New(openai_compat.Config{
			Endpoint:   ep.URL,
			APIKey:     ep.APIKey,
			Model:      ep.Model,
			HTTPClient: settings.HTTPClient,
		})
	case providers.KindGrok:
		return bearer.NewGenerate(ep.URL, ep.APIKey, ep.Model, settings.HTTPClient)
	case providers.KindClaude:
		return bearer.NewCompletion(ep.URL, ep.APIKey, ep.Model, settings.HTTPClient)
	default:
		return ollama.New(ollama.Config{
			Endpoint:   ep.URL,
			Model:      ep.Model,
			HTTPClient: settings.HTTPClient,
		})
	}
}
