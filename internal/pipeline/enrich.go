package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quizsmith/quizsmith/internal/ai"
)

const maxEnrichedTitleWords = 6

// Enrichment is the completion-produced refinement of a normalized topic.
type Enrichment struct {
	Title      string   `json:"title"`
	Summary    []string `json:"summary"`
	Importance int      `json:"importance"`
}

// Enricher produces a concise title, summary bullets and an importance
// rating for each normalized topic through the completion gateway.
type Enricher struct {
	completer ai.Completer
	retry     ai.RetryConfig
}

// NewEnricher returns an Enricher backed by the given completer.
func NewEnricher(completer ai.Completer, retry ai.RetryConfig) *Enricher {
	return &Enricher{completer: completer, retry: retry}
}

const enrichSystemPrompt = `You refine extracted web-page topics for quiz generation.
Respond with a single JSON object and nothing else:
{"title": string, "summary": [string, ...], "importance": integer}
Rules:
- "title": a concise topic title of at most 6 words.
- "summary": 2 to 3 bullet strings capturing the key points.
- "importance": 1 (peripheral) to 5 (central to the page).`

// Enrich runs one topic through the completion gateway, retrying the whole
// call on transport, parse or validation failures.
func (e *Enricher) Enrich(ctx context.Context, topic NormalizedTopic) (Enrichment, error) {
	return ai.Retry(ctx, e.retry, func(ctx context.Context) (Enrichment, error) {
		resp, err := e.completer.Complete(ctx, ai.CompletionRequest{
			Messages: []ai.Message{
				{Role: "system", Content: enrichSystemPrompt},
				{Role: "user", Content: enrichUserPrompt(topic)},
			},
			Temperature: 0.3,
		})
		if err != nil {
			return Enrichment{}, fmt.Errorf("enriching topic %q: %w", topic.Title, err)
		}
		return parseEnrichment(resp.Content, topic.Title)
	})
}

func enrichUserPrompt(topic NormalizedTopic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic heading: %s\n", topic.Title)
	if topic.Summary != "" {
		fmt.Fprintf(&b, "Extracted summary: %s\n", topic.Summary)
	}
	b.WriteString("Content:\n")
	for _, para := range topic.Content {
		b.WriteString(para)
		b.WriteString("\n")
	}
	return b.String()
}

func parseEnrichment(payload, topicTitle string) (Enrichment, error) {
	doc := stripCodeFence(payload)
	if err := validateAgainst(enrichmentSchema, doc); err != nil {
		return Enrichment{}, fmt.Errorf("topic %q: %w", topicTitle, err)
	}

	var enriched Enrichment
	if err := json.Unmarshal([]byte(doc), &enriched); err != nil {
		return Enrichment{}, fmt.Errorf("decoding enrichment for topic %q: %w", topicTitle, err)
	}

	// The schema cannot count words; reject overlong titles so the retry
	// wrapper asks again.
	if words := len(strings.Fields(enriched.Title)); words > maxEnrichedTitleWords {
		return Enrichment{}, fmt.Errorf("enriched title for topic %q has %d words, limit is %d",
			topicTitle, words, maxEnrichedTitleWords)
	}
	return enriched, nil
}

// FallbackEnrichment builds the degraded enrichment used when all retries
// are exhausted: the original title, a single summary element, and a
// neutral importance. A fallback never fails the topic phase.
func FallbackEnrichment(topic NormalizedTopic) Enrichment {
	summary := topic.Summary
	if summary == "" && len(topic.Content) > 0 {
		runes := []rune(topic.Content[0])
		if len(runes) > summaryMaxChars {
			summary = string(runes[:summaryMaxChars]) + "..."
		} else {
			summary = topic.Content[0]
		}
	}

	slog.Warn("topic enrichment failed, using fallback", "topic", topic.Title)
	return Enrichment{
		Title:      topic.Title,
		Summary:    []string{summary},
		Importance: 3,
	}
}
