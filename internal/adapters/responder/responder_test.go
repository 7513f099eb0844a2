package responder

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestVetraEchoesTruncatedPrompt(t *testing.T) {
	v := NewVetra()

	answer, err := v.Generate(context.Background(), "user@example.com", "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer.Answer != "Vetra AI processed: hello" {
		t.Fatalf("unexpected answer: %s", answer.Answer)
	}

	long := strings.Repeat("x", 500)
	answer, err = v.Generate(context.Background(), "user@example.com", long)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if want := "Vetra AI processed: " + long[:200]; answer.Answer != want {
		t.Fatalf("expected 200-char echo, got %d chars", len(answer.Answer))
	}
}

func TestSyraReversesPrompt(t *testing.T) {
	s := NewSyra()

	answer, err := s.Generate(context.Background(), "user@example.com", "abc")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer.Answer != "Syra AI processed: cba" {
		t.Fatalf("unexpected answer: %s", answer.Answer)
	}
	if answer.Reason != "Prompt length 3" {
		t.Fatalf("unexpected reason: %s", answer.Reason)
	}
}

func TestSyraReversesMultibytePrompt(t *testing.T) {
	s := NewSyra()
	answer, err := s.Generate(context.Background(), "user@example.com", "héllo")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer.Answer != "Syra AI processed: olléh" {
		t.Fatalf("unexpected answer: %s", answer.Answer)
	}
}

func TestSyraShortMemoryCapped(t *testing.T) {
	s := NewSyra()
	for i := 0; i < 15; i++ {
		if _, err := s.Generate(context.Background(), "user@example.com", fmt.Sprintf("prompt-%d", i)); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}

	short := s.ShortMemory("user@example.com")
	if len(short) != 10 {
		t.Fatalf("expected short memory capped at 10, got %d", len(short))
	}
	if short[0] != "prompt-5" || short[9] != "prompt-14" {
		t.Fatalf("expected latest window, got %v", short)
	}

	if len(s.ShortMemory("other@example.com")) != 0 {
		t.Fatal("memory must be per identity")
	}
}
