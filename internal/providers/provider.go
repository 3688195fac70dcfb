package providers

import (
	"context"
	"strings"
)

// Provider turns a prompt into text using one LLM backend.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Kind is the canonical name of a provider variant.
type Kind string

const (
	// KindOllama is the local generate-style API.
	KindOllama Kind = "ollama"
	// KindOpenAI is the chat-completions API.
	KindOpenAI Kind = "openai"
	// KindGrok is a generate-style API with bearer auth.
	KindGrok Kind = "grok"
	// KindClaude is a completion-style API with bearer auth.
	KindClaude Kind = "claude"
)

// Kinds lists every supported variant in display order.
func Kinds() []Kind {
	return []Kind{KindOllama, KindOpenAI, KindGrok, KindClaude}
}

// ParseKind normalizes a user-supplied provider key. Unknown and empty keys map to KindOllama.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "chat-completions", "chat_completions":
		return KindOpenAI
	case "grok", "bearer-generate", "bearer_generate":
		return KindGrok
	case "claude", "bearer-completion", "bearer_completion":
		return KindClaude
	default:
		return KindOllama
	}
}

// Known reports whether s names a provider explicitly instead of relying on the fallback.
func Known(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama", "local", "local-generate", "local_generate":
		return true
	}
	return ParseKind(s) != KindOllama
}

// Describer is implemented by providers that can report where they send requests.
type Describer interface {
	Endpoint() string
	Model() string
}
