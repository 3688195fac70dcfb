package openai_compat

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

func TestBuildPayloadChatCompletions(t *testing.T) {
	c := New(Config{Model: "gpt-4o-mini"})

	b, err := json.Marshal(c.buildPayload("hello"))
	require.NoError(t, err)

	var payload struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Stream *bool `json:"stream"`
	}
	require.NoError(t, json.Unmarshal(b, &payload))
	require.Equal(t, "gpt-4o-mini", payload.Model)
	require.Len(t, payload.Messages, 1)
	require.Equal(t, "user", payload.Messages[0].Role)
	require.Equal(t, "hello", payload.Messages[0].Content)
	require.Nil(t, payload.Stream)
}

func TestGenerateReturnsFirstChoice(t *testing.T) {
	var auth, ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ctype = r.Header.Get("Authorization"), r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"` + "```py\\nprint(1)\\n```" + `"}},{"index":1,"message":{"role":"assistant","content":"other"}}]}`))
	}))
	defer srv.Close()

	out, err := New(Config{Endpoint: srv.URL, APIKey: "sk-test"}).Generate(context.Background(), "write code")
	require.NoError(t, err)
	require.Equal(t, "print(1)", out)
	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "application/json", ctype)
}

func TestGenerateRejectedCarriesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL}).Generate(context.Background(), "hi")
	require.ErrorIs(t, err, providers.ErrRejected)

	var pe *providers.Error
	require.True(t, errors.As(err, &pe))
	require.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	require.Equal(t, "Incorrect API key provided", pe.Message)
	require.Equal(t, "openai rejected the request: 401 Unauthorized: Incorrect API key provided", providers.Describe(err))
}

func TestGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{Endpoint: url}).Generate(context.Background(), "hi")
	require.ErrorIs(t, err, providers.ErrUnreachable)
}

func TestGenerateMalformedWithoutChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL}).Generate(context.Background(), "hi")
	require.ErrorIs(t, err, providers.ErrMalformedResponse)
}

func TestGenerateMalformedNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL}).Generate(context.Background(), "hi")
	require.ErrorIs(t, err, providers.ErrMalformedResponse)
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	require.Equal(t, DefaultEndpoint, c.Endpoint())
	require.Equal(t, DefaultModel, c.Model())
}
