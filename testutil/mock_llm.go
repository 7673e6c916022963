// Package testutil provides configurable mocks for testing without external
// services.
package testutil

import (
	"context"
	"sync"

	"github.com/happyhackingspace/workbox/pkg/llm"
)

// MockLLM is a configurable mock implementation of llm.Service.
type MockLLM struct {
	mu sync.Mutex

	// Response is returned from GenerateText when OnGenerate is nil.
	Response string

	// Err is returned from GenerateText when set.
	Err error

	// Prompt history for assertions
	Prompts []string

	// Hook for testing
	OnGenerate func(ctx context.Context, prompt string) (string, error)
}

// NewMockLLM creates a mock that answers every prompt with response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{
		Response: response,
		Prompts:  make([]string, 0),
	}
}

// GenerateText records the prompt and returns the configured response.
func (m *MockLLM) GenerateText(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// CallCount returns how many prompts were seen.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// LastPrompt returns the most recent prompt, or "" if none.
func (m *MockLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}

var _ llm.Service = (*MockLLM)(nil)
