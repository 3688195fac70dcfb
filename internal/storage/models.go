package storage

import "time"

type Credential struct {
	Kind      string
	EncAPIKey string
	UpdatedAt time.Time
}

// Generation is one recorded provider call.
type Generation struct {
	ID          string
	Action      string
	Provider    string
	Model       string
	Outcome     string
	StatusCode  int
	DurationMS  int64
	PromptChars int
	ResultChars int
	Error       string
	CreatedAt   time.Time
}
