package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"privatepilot/internal/providers"
	"privatepilot/internal/providers/bearer"
	"privatepilot/internal/providers/ollama"
	"privatepilot/internal/providers/openai_compat"
)

func TestSelectFallsBackToOllama(t *testing.T) {
	for _, key := range []string{"", "unknown", "gpt", "  "} {
		p := Select(Settings{Provider: key})
		c, ok := p.(*ollama.Client)
		require.Truef(t, ok, "key %q selected %T", key, p)
		require.Equal(t, "http://localhost:11434/api/generate", c.Endpoint())
		require.Equal(t, "llama2", c.Model())
	}
}

func TestSelectIsCaseInsensitive(t *testing.T) {
	cases := map[string]any{
		"OpenAI":            &openai_compat.Client{},
		"chat-completions":  &openai_compat.Client{},
		"GROK":              &bearer.Client{},
		"bearer-generate":   &bearer.Client{},
		" Claude ":          &bearer.Client{},
		"bearer-completion": &bearer.Client{},
		"Ollama":            &ollama.Client{},
		"local-generate":    &ollama.Client{},
	}
	for key, want := range cases {
		require.IsTypef(t, want, Select(Settings{Provider: key}), "key %q", key)
	}
}

func TestSelectUsesConfiguredSettings(t *testing.T) {
	p := Select(Settings{
		Provider: "claude",
		Claude:   Endpoint{URL: "https://llm.internal/complete", APIKey: "k", Model: "claude-2"},
		Grok:     Endpoint{URL: "https://ignored"},
	})
	d, ok := p.(providers.Describer)
	require.True(t, ok)
	require.Equal(t, "https://llm.internal/complete", d.Endpoint())
	require.Equal(t, "claude-2", d.Model())
}

func TestSelectRemoteDefaults(t *testing.T) {
	openai := Select(Settings{Provider: "openai"}).(providers.Describer)
	require.Equal(t, "https://api.openai.com/v1/chat/completions", openai.Endpoint())
	require.Equal(t, "gpt-3.5-turbo", openai.Model())

	grok := Select(Settings{Provider: "grok"}).(providers.Describer)
	require.Equal(t, "", grok.Endpoint())
	require.Equal(t, "latest", grok.Model())

	claude := Select(Settings{Provider: "claude"}).(providers.Describer)
	require.Equal(t, "", claude.Endpoint())
	require.Equal(t, "claude-3-opus-20240229", claude.Model())
}

// successBodies holds the documented success shape per variant; each carries the text "ok".
var successBodies = map[providers.Kind]string{
	providers.KindOllama: `{"response":"ok"}`,
	providers.KindOpenAI: `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`,
	providers.KindGrok:   `{"response":"ok"}`,
	providers.KindClaude: `{"completion":"ok"}`,
}

func settingsFor(kind providers.Kind, url string) Settings {
	ep := Endpoint{URL: url, APIKey: "key", Model: "m"}
	s := Settings{Provider: string(kind)}
	switch kind {
	case providers.KindOpenAI:
		s.OpenAI = ep
	case providers.KindGrok:
		s.Grok = ep
	case providers.KindClaude:
		s.Claude = ep
	default:
		s.Ollama = ep
	}
	return s
}

func TestAllVariantsSuccess(t *testing.T) {
	for _, kind := range providers.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(successBodies[kind]))
			}))
			defer srv.Close()

			out, err := Select(settingsFor(kind, srv.URL)).Generate(context.Background(), "prompt")
			require.NoError(t, err)
			require.Equal(t, "ok", out)
		})
	}
}

func TestAllVariantsRejected(t *testing.T) {
	for _, kind := range providers.Kinds() {
		for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			_, err := Select(settingsFor(kind, srv.URL)).Generate(context.Background(), "prompt")
			srv.Close()

			require.ErrorIs(t, err, providers.ErrRejected, "kind %s status %d", kind, status)
			var pe *providers.Error
			require.ErrorAs(t, err, &pe)
			require.Equal(t, status, pe.StatusCode)
			require.Equal(t, string(kind), pe.Provider)
		}
	}
}

func TestAllVariantsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	for _, kind := range providers.Kinds() {
		_, err := Select(settingsFor(kind, url)).Generate(context.Background(), "prompt")
		require.ErrorIs(t, err, providers.ErrUnreachable, "kind %s", kind)
		require.Equal(t, providers.KindUnreachable, providers.KindOf(err))
	}
}

func TestWithAPIKey(t *testing.T) {
	s := Settings{}.WithAPIKey(providers.KindGrok, "secret")
	require.Equal(t, "secret", s.Grok.APIKey)
	require.Equal(t, "secret", s.EndpointFor(providers.KindGrok).APIKey)
	require.Empty(t, s.WithAPIKey(providers.KindOllama, "x").Ollama.APIKey)
}
