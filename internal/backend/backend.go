// Package backend talks to the generative-text services that turn prompts into raw text.
package backend

import (
	"context"
	"errors"
	"fmt"

	"learned/internal/models"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultMaxOutputTokens = 4096
	DefaultTemperature     = 0.4

	// reasonUnknown is reported when the service gives no stop condition.
	reasonUnknown = "UNKNOWN"
)

var (
	// ErrNotConfigured is returned when a backend was built without credentials.
	ErrNotConfigured = errors.New("backend is not configured")
	// ErrNoContent is returned when a call succeeds but yields no text.
	ErrNoContent = errors.New("no content returned")
)

// Generator turns a prompt message sequence into raw text.
type Generator interface {
	Generate(ctx context.Context, msgs []models.Message, opts Options) (string, error)
	Provider() string
	Model() string
}

// Options tunes a single generation call.
type Options struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

// DefaultOptions matches the limits the study actions were tuned for.
func DefaultOptions() Options {
	return Options{MaxOutputTokens: DefaultMaxOutputTokens, Temperature: DefaultTemperature}
}

// Normalize fills a missing token limit and clamps temperature into [0, 2].
func (o Options) Normalize() Options {
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = DefaultMaxOutputTokens
	}
	switch {
	case o.Temperature < 0:
		o.Temperature = 0
	case o.Temperature > 2:
		o.Temperature = 2
	}
	return o
}

// BackendError reports a failed or empty generation. Reason carries the service's stop
// condition (SAFETY, MAX_TOKENS, length, content_filter, ...) when one was given.
type BackendError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *BackendError) Error() string {
	msg := e.Provider
	if msg == "" {
		msg = "backend"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(" (finish reason: %s)", e.Reason)
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsBackendError reports whether err is, or wraps, a *BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

func noContent(provider, reason string) *BackendError {
	if reason == "" {
		reason = reasonUnknown
	}
	return &BackendError{Provider: provider, Reason: reason, Err: ErrNoContent}
}
