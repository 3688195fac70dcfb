package providers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrNoEndpoint        = errors.New("endpoint is not configured")
	ErrRejected          = errors.New("provider rejected the request")
	ErrUnreachable       = errors.New("provider is not reachable")
	ErrMalformedResponse = errors.New("provider returned a malformed response")
)

// ErrorKind classifies a failed generation.
type ErrorKind int

const (
	// KindRejected means the backend answered with a non-2xx status.
	KindRejected ErrorKind = iota + 1
	// KindUnreachable means no response was received.
	KindUnreachable
	// KindMalformed means a 2xx response lacked the expected field.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindUnreachable:
		return "unreachable"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by every provider when a call fails.
type Error struct {
	Provider   string
	Endpoint   string
	Kind       ErrorKind
	StatusCode int
	// Status is the reason phrase of a rejected call, e.g. "Not Found".
	Status string
	// Message is the error text reported by the backend body, if any.
	Message string
	// Body holds a truncated copy of the raw response for malformed replies.
	Body string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	switch e.Kind {
	case KindRejected:
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
		if e.Status != "" {
			b.WriteString(" " + e.Status)
		}
		if e.Message != "" {
			b.WriteString(": " + e.Message)
		}
	case KindUnreachable:
		b.WriteString(": no response received")
	case KindMalformed:
		b.WriteString(": invalid response")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrMalformedResponse:
		return e.Kind == KindMalformed
	}
	return false
}

// Describe renders err as the message shown to the editor user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if !errors.As(err, &pe) {
		return err.Error()
	}
	switch pe.Kind {
	case KindRejected:
		msg := fmt.Sprintf("%s rejected the request: %d", pe.Provider, pe.StatusCode)
		if pe.Status != "" {
			msg += " " + pe.Status
		}
		if pe.Message != "" {
			msg += ": " + pe.Message
		}
		return msg
	case KindUnreachable:
		if errors.Is(pe.Err, ErrNoEndpoint) {
			return fmt.Sprintf("%s has no endpoint configured", pe.Provider)
		}
		if pe.Endpoint != "" {
			return fmt.Sprintf("%s is not reachable; verify the service is running at %s", pe.Provider, pe.Endpoint)
		}
		return fmt.Sprintf("%s is not reachable; verify the service is running", pe.Provider)
	case KindMalformed:
		return fmt.Sprintf("%s returned an invalid response; check the backend version and model", pe.Provider)
	default:
		return pe.Error()
	}
}

// KindOf returns the failure kind of err, or 0 if err is not a provider error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
