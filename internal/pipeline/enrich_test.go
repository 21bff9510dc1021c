package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/quizsmith/quizsmith/internal/ai"
	"github.com/quizsmith/quizsmith/internal/pipeline"
)

func testRetry() ai.RetryConfig {
	return ai.RetryConfig{MaxRetries: 2, Sleep: ai.NoSleep}
}

const validEnrichment = `{"title":"Go Concurrency","summary":["Goroutines are cheap","Channels synchronize"],"importance":4}`

func TestEnricher_Enrich(t *testing.T) {
	mock := ai.NewMockProvider(validEnrichment)
	enricher := pipeline.NewEnricher(mock, testRetry())

	topic := pipeline.NormalizedTopic{
		Title:   "Concurrency",
		Content: []string{"Goroutines are lightweight threads managed by the runtime."},
	}

	got, err := enricher.Enrich(context.Background(), topic)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got.Title != "Go Concurrency" {
		t.Errorf("Title = %q, want %q", got.Title, "Go Concurrency")
	}
	if len(got.Summary) != 2 {
		t.Errorf("Summary = %d bullets, want 2", len(got.Summary))
	}
	if got.Importance != 4 {
		t.Errorf("Importance = %d, want 4", got.Importance)
	}

	prompt := mock.LastRequest.Messages[len(mock.LastRequest.Messages)-1].Content
	if !strings.Contains(prompt, "Concurrency") {
		t.Error("prompt should include the topic heading")
	}
	if !strings.Contains(prompt, "lightweight threads") {
		t.Error("prompt should include the topic content")
	}
}

func TestEnricher_AcceptsFencedPayload(t *testing.T) {
	mock := ai.NewMockProvider("```json\n" + validEnrichment + "\n```")
	enricher := pipeline.NewEnricher(mock, testRetry())

	got, err := enricher.Enrich(context.Background(), pipeline.NormalizedTopic{Title: "T", Content: []string{"x"}})
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if got.Title != "Go Concurrency" {
		t.Errorf("Title = %q, want the fenced payload decoded", got.Title)
	}
}

func TestEnricher_RetriesInvalidPayload(t *testing.T) {
	mock := &ai.MockProvider{Responses: []string{"not json at all", validEnrichment}}
	enricher := pipeline.NewEnricher(mock, testRetry())

	_, err := enricher.Enrich(context.Background(), pipeline.NormalizedTopic{Title: "T", Content: []string{"x"}})
	if err != nil {
		t.Fatalf("Enrich() error = %v, want success after retry", err)
	}
	if mock.Calls != 2 {
		t.Errorf("Calls = %d, want 2 (a parse failure must trigger a fresh completion call)", mock.Calls)
	}
}

func TestEnricher_RejectsOverlongTitle(t *testing.T) {
	// Schema-valid but seven words; the word-count re-check must fail it.
	payload := `{"title":"a very long title of seven words","summary":["a","b"],"importance":3}`
	mock := ai.NewMockProvider(payload)
	enricher := pipeline.NewEnricher(mock, testRetry())

	_, err := enricher.Enrich(context.Background(), pipeline.NormalizedTopic{Title: "T", Content: []string{"x"}})
	if err == nil {
		t.Fatal("Enrich() should fail on an overlong title")
	}
	if mock.Calls != 3 {
		t.Errorf("Calls = %d, want 3 (initial call plus two retries)", mock.Calls)
	}
}

func TestFallbackEnrichment(t *testing.T) {
	t.Run("uses derived summary", func(t *testing.T) {
		got := pipeline.FallbackEnrichment(pipeline.NormalizedTopic{
			Title:   "Original Heading",
			Summary: "derived summary",
			Content: []string{"first paragraph"},
		})
		if got.Title != "Original Heading" {
			t.Errorf("Title = %q, want the original heading", got.Title)
		}
		if len(got.Summary) != 1 || got.Summary[0] != "derived summary" {
			t.Errorf("Summary = %v, want the single derived summary", got.Summary)
		}
		if got.Importance != 3 {
			t.Errorf("Importance = %d, want neutral 3", got.Importance)
		}
	})

	t.Run("falls back to truncated first paragraph", func(t *testing.T) {
		long := strings.Repeat("p", 300)
		got := pipeline.FallbackEnrichment(pipeline.NormalizedTopic{
			Title:   "T",
			Content: []string{long},
		})
		want := strings.Repeat("p", 200) + "..."
		if len(got.Summary) != 1 || got.Summary[0] != want {
			t.Errorf("Summary = %v, want the truncated first paragraph", got.Summary)
		}
	})
}
