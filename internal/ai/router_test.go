package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/quizsmith/quizsmith/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("Hello!")
	router.Register("openai", mock)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()

	failing := &ai.MockProvider{Errs: []error{errors.New("rate limited")}}
	fallback := ai.NewMockProvider("Fallback response")

	router.Register("openai", failing)
	router.Register("deepseek", fallback)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()

	router.Register("openai", &ai.MockProvider{Errs: []error{errors.New("fail 1")}})
	router.Register("deepseek", &ai.MockProvider{Errs: []error{errors.New("fail 2")}})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err == nil {
		t.Fatal("Complete() should return error with no providers")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()

	// First registered should be tried first.
	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q (first registered should be tried first)", resp.Content, "first")
	}
}

func TestMockProvider_ScriptedResponses(t *testing.T) {
	mock := &ai.MockProvider{
		Responses: []string{"", "", "third"},
		Errs:      []error{errors.New("one"), errors.New("two"), nil},
	}

	for i := 0; i < 2; i++ {
		if _, err := mock.Complete(context.Background(), ai.CompletionRequest{}); err == nil {
			t.Fatalf("call %d should fail", i+1)
		}
	}
	resp, err := mock.Complete(context.Background(), ai.CompletionRequest{})
	if err != nil {
		t.Fatalf("third call error = %v", err)
	}
	if resp.Content != "third" {
		t.Errorf("Content = %q, want %q", resp.Content, "third")
	}
	if mock.Calls != 3 {
		t.Errorf("Calls = %d, want 3", mock.Calls)
	}
}
