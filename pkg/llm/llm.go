// Package llm defines the external text-generation collaborator used for
// read summaries and edit proposals.
package llm

import (
	"context"
	"time"
)

// GenerateOption tunes a single generation request.
type GenerateOption func(*GenerateOptions)

// GenerateOptions holds per-request generation settings.
type GenerateOptions struct {
	// Temperature controls sampling randomness. Negative means provider
	// default.
	Temperature float64

	// MaxTokens caps the response length.
	MaxTokens int

	// Timeout bounds the request when the caller's context has no
	// deadline of its own.
	Timeout time.Duration
}

// DefaultGenerateOptions returns the baseline request settings.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: -1,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithTimeout bounds the request duration.
func WithTimeout(d time.Duration) GenerateOption {
	return func(o *GenerateOptions) {
		o.Timeout = d
	}
}

// Service generates free-form text from a prompt.
type Service interface {
	// GenerateText returns the model's response for the given prompt.
	GenerateText(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
}
