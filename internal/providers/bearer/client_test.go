package bearer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"privatepilot/internal/providers"
)

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateVariantPostsModelAndPrompt(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"  answer  "}`))
	}))
	defer srv.Close()

	out, err := NewGenerate(srv.URL, "xai-key", "", nil).Generate(context.Background(), "question")
	require.NoError(t, err)
	require.Equal(t, "answer", out)
	require.Equal(t, "Bearer xai-key", auth)
	require.Equal(t, map[string]any{"model": DefaultGenerateModel, "prompt": "question"}, got)
}

func TestCompletionPrefersCompletionField(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"response":"fallback","completion":"primary"}`)

	out, err := NewCompletion(srv.URL, "k", "", nil).Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "primary", out)
}

func TestCompletionFallsBackToResponse(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"completion":"","response":"`+"```\\nbody\\n```"+`"}`)

	out, err := NewCompletion(srv.URL, "k", "", nil).Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "body", out)
}

func TestGenerateVariantIgnoresCompletionField(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"completion":"text"}`)

	_, err := NewGenerate(srv.URL, "k", "", nil).Generate(context.Background(), "p")
	require.ErrorIs(t, err, providers.ErrMalformedResponse)
}

func TestRejected(t *testing.T) {
	srv := jsonServer(t, http.StatusServiceUnavailable, `overloaded`)

	for _, c := range []*Client{
		NewGenerate(srv.URL, "k", "", nil),
		NewCompletion(srv.URL, "k", "", nil),
	} {
		_, err := c.Generate(context.Background(), "p")
		require.ErrorIs(t, err, providers.ErrRejected)
		var pe *providers.Error
		require.True(t, errors.As(err, &pe))
		require.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
		require.Empty(t, pe.Message)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewCompletion(url, "k", "", nil).Generate(context.Background(), "p")
	require.ErrorIs(t, err, providers.ErrUnreachable)
}

func TestEmptyEndpointFailsAtCallTime(t *testing.T) {
	c := NewGenerate("", "", "", nil)
	require.Equal(t, "", c.Endpoint())

	_, err := c.Generate(context.Background(), "p")
	require.ErrorIs(t, err, providers.ErrUnreachable)
	require.ErrorIs(t, err, providers.ErrNoEndpoint)
	require.Equal(t, "grok has no endpoint configured", providers.Describe(err))
}

func TestNoAuthorizationHeaderWithoutKey(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	_, err := NewGenerate(srv.URL, "", "m", nil).Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Empty(t, auth)
}

func TestDefaultModels(t *testing.T) {
	require.Equal(t, "latest", NewGenerate("", "", "", nil).Model())
	require.Equal(t, "claude-3-opus-20240229", NewCompletion("", "", "", nil).Model())
	require.Equal(t, "custom", NewCompletion("", "", "custom", nil).Model())
}
