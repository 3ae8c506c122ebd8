package utils

import (
	"strings"
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	tests := []struct {
		name  string
		model string
	}{
		{
			name:  "known model",
			model: "gpt-4o",
		},
		{
			name:  "unknown model falls back to cl100k_base",
			model: "totally-made-up-model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := NewTokenCounter(tt.model)
			if err != nil {
				t.Fatalf("NewTokenCounter(%q) error = %v", tt.model, err)
			}
			if tc.GetModel() != tt.model {
				t.Errorf("GetModel() = %q, want %q", tc.GetModel(), tt.model)
			}
		})
	}
}

func TestCount(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("NewTokenCounter() error = %v", err)
	}

	tests := []struct {
		name string
		text string
		min  int
		max  int
	}{
		{
			name: "empty",
			text: "",
			min:  0,
			max:  0,
		},
		{
			name: "single word",
			text: "hello",
			min:  1,
			max:  2,
		},
		{
			name: "sentence",
			text: "The quick brown fox jumps over the lazy dog.",
			min:  5,
			max:  15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tc.Count(tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("Count(%q) = %d, want between %d and %d", tt.text, got, tt.min, tt.max)
			}
		})
	}
}

func TestCountMessages(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("NewTokenCounter() error = %v", err)
	}

	messages := []Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "Hello there."},
	}

	got := tc.CountMessages(messages)

	// Must exceed the raw content tokens because of per-message framing.
	raw := tc.Count(messages[0].Content) + tc.Count(messages[1].Content)
	if got <= raw {
		t.Errorf("CountMessages() = %d, want > %d (raw content tokens)", got, raw)
	}
}

func TestFitWithinLimit(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("NewTokenCounter() error = %v", err)
	}

	long := strings.Repeat("word ", 200)
	messages := []Message{
		{Role: "user", Content: long},
		{Role: "assistant", Content: "short answer"},
		{Role: "user", Content: "latest question"},
	}

	tests := []struct {
		name      string
		maxTokens int
		wantLen   int
		wantLast  string
	}{
		{
			name:      "all fit",
			maxTokens: 10000,
			wantLen:   3,
			wantLast:  "latest question",
		},
		{
			name:      "only newest fit",
			maxTokens: 30,
			wantLen:   2,
			wantLast:  "latest question",
		},
		{
			name:      "nothing fits",
			maxTokens: 1,
			wantLen:   0,
			wantLast:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fitted := tc.FitWithinLimit(messages, tt.maxTokens)
			if len(fitted) != tt.wantLen {
				t.Fatalf("FitWithinLimit() returned %d messages, want %d", len(fitted), tt.wantLen)
			}
			if tt.wantLen > 0 && fitted[len(fitted)-1].Content != tt.wantLast {
				t.Errorf("last message = %q, want %q", fitted[len(fitted)-1].Content, tt.wantLast)
			}
		})
	}
}

func TestFitWithinLimitEmpty(t *testing.T) {
	tc, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("NewTokenCounter() error = %v", err)
	}

	fitted := tc.FitWithinLimit([]Message{}, 100)
	if len(fitted) != 0 {
		t.Errorf("FitWithinLimit(empty) returned %d messages, want 0", len(fitted))
	}
}
