// Package httpjson performs the single JSON POST every provider variant is built on
// and classifies its failures into the provider error taxonomy.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"privatepilot/internal/providers"
)

const (
	maxBodyBytes    = 4 << 20
	maxSnippetBytes = 512
)

// Request describes one provider call.
type Request struct {
	Provider string
	URL      string
	APIKey   string
	Payload  any
}

// DefaultClient is used when a provider is built without an HTTP client.
func DefaultClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

// Post sends req.Payload as JSON and returns the body of a 2xx response.
func Post(ctx context.Context, client *http.Client, req Request) ([]byte, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, &providers.Error{Provider: req.Provider, Kind: providers.KindUnreachable, Err: providers.ErrNoEndpoint}
	}
	if client == nil {
		client = DefaultClient()
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal payload: %w", req.Provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &providers.Error{Provider: req.Provider, Endpoint: req.URL, Kind: providers.KindUnreachable, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(req.APIKey) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%s: %w", req.Provider, context.Canceled)
		}
		return nil, &providers.Error{Provider: req.Provider, Endpoint: req.URL, Kind: providers.KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &providers.Error{
			Provider:   req.Provider,
			Endpoint:   req.URL,
			Kind:       providers.KindRejected,
			StatusCode: resp.StatusCode,
			Status:     reason(resp),
			Message:    errorMessage(respBody),
		}
	}
	if readErr != nil {
		return nil, &providers.Error{Provider: req.Provider, Endpoint: req.URL, Kind: providers.KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", readErr)}
	}
	return respBody, nil
}

// Malformed builds the error for a 2xx body that lacks the expected content.
func Malformed(provider string, body []byte, cause error) *providers.Error {
	return &providers.Error{
		Provider:   provider,
		Kind:       providers.KindMalformed,
		StatusCode: http.StatusOK,
		Body:       Snippet(body),
		Err:        cause,
	}
}

// LookupString returns the first non-empty string among fields of a JSON object body,
// checked in priority order.
func LookupString(body []byte, fields ...string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, f := range fields {
		raw, ok := obj[f]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if strings.TrimSpace(s) != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("missing field %s", strings.Join(fields, "|"))
}

// Snippet truncates a response body for diagnostics.
func Snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippetBytes {
		return s[:maxSnippetBytes] + "..."
	}
	return s
}

func reason(resp *http.Response) string {
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if status == "" {
		status = http.StatusText(resp.StatusCode)
	}
	return status
}

// errorMessage pulls {"error":"..."} or {"error":{"message":"..."}} out of a rejection body.
func errorMessage(body []byte) string {
	var resp struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(resp.Error, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Error, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}
