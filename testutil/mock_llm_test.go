package testutil

import (
	"context"
	"errors"
	"testing"
)

func TestMockLLM_GenerateText(t *testing.T) {
	m := NewMockLLM("hello")

	got, err := m.GenerateText(context.Background(), "prompt one")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("GenerateText() = %q, want %q", got, "hello")
	}
	if m.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", m.CallCount())
	}
	if m.LastPrompt() != "prompt one" {
		t.Errorf("LastPrompt() = %q", m.LastPrompt())
	}
}

func TestMockLLM_Error(t *testing.T) {
	wantErr := errors.New("generation failed")
	m := NewMockLLM("")
	m.Err = wantErr

	if _, err := m.GenerateText(context.Background(), "p"); !errors.Is(err, wantErr) {
		t.Errorf("GenerateText() error = %v, want %v", err, wantErr)
	}
}

func TestMockLLM_Hook(t *testing.T) {
	m := NewMockLLM("ignored")
	m.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
		return "from hook: " + prompt, nil
	}

	got, err := m.GenerateText(context.Background(), "x")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if got != "from hook: x" {
		t.Errorf("GenerateText() = %q", got)
	}
}

func TestMockLLM_ContextCancelled(t *testing.T) {
	m := NewMockLLM("hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.GenerateText(ctx, "p"); !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateText() error = %v, want context.Canceled", err)
	}
}
