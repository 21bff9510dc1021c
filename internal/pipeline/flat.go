package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/quizsmith/quizsmith/internal/ai"
	"github.com/quizsmith/quizsmith/internal/quiz"
)

const (
	minFlatQuestions = 5
	maxFlatQuestions = 10
)

// FlatQuiz is a single-pass quiz generated from a whole page without the
// topic forest: a title plus 5 to 10 questions.
type FlatQuiz struct {
	Title     string          `json:"title"`
	Questions []quiz.Question `json:"questions"`
}

// FlatQuizGenerator condenses a page's segments into key points and
// generates one flat quiz from them. It is the fallback path for pages
// whose structure is too poor for the topic pipeline.
type FlatQuizGenerator struct {
	completer ai.Completer
	retry     ai.RetryConfig
}

// NewFlatQuizGenerator returns a generator backed by the given completer.
func NewFlatQuizGenerator(completer ai.Completer, retry ai.RetryConfig) *FlatQuizGenerator {
	return &FlatQuizGenerator{completer: completer, retry: retry}
}

const condenseSystemPrompt = `You condense web-page content into key points for quiz writing.
Respond with a plain-text list of the page's key points, one per line.
Keep every factual detail a quiz question could test; drop navigation,
boilerplate and repetition.`

// CondenseKeyPoints reduces the segmented page to a compact key-point
// digest. The digest, not the raw page, feeds question generation.
func (g *FlatQuizGenerator) CondenseKeyPoints(ctx context.Context, segments []RawSegment) (string, error) {
	var b strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&b, "## %s\n", seg.Title)
		for _, para := range seg.Content {
			b.WriteString(para)
			b.WriteString("\n")
		}
	}

	return ai.Retry(ctx, g.retry, func(ctx context.Context) (string, error) {
		resp, err := g.completer.Complete(ctx, ai.CompletionRequest{
			Messages: []ai.Message{
				{Role: "system", Content: condenseSystemPrompt},
				{Role: "user", Content: b.String()},
			},
			Temperature: 0.3,
		})
		if err != nil {
			return "", fmt.Errorf("condensing key points: %w", err)
		}
		if strings.TrimSpace(resp.Content) == "" {
			return "", fmt.Errorf("key-point condensation returned empty content")
		}
		return resp.Content, nil
	})
}

const flatQuizSystemPrompt = `You write a multiple-choice quiz from key points.
Respond with a single JSON object and nothing else:
{"title": string, "questions": [{"question": string, "options": [string, string, string, string], "answerIndex": integer}]}
Rules:
- 5 to 10 questions.
- Every question has exactly 4 options and one correct answerIndex (0-3).`

// Generate produces the flat quiz from a key-point digest, retrying the
// whole call on transport, parse or validation failures.
func (g *FlatQuizGenerator) Generate(ctx context.Context, keyPoints string) (FlatQuiz, error) {
	return ai.Retry(ctx, g.retry, func(ctx context.Context) (FlatQuiz, error) {
		resp, err := g.completer.Complete(ctx, ai.CompletionRequest{
			Messages: []ai.Message{
				{Role: "system", Content: flatQuizSystemPrompt},
				{Role: "user", Content: "Key points:\n" + keyPoints},
			},
			Temperature: 0.7,
		})
		if err != nil {
			return FlatQuiz{}, fmt.Errorf("generating flat quiz: %w", err)
		}
		return parseFlatQuiz(resp.Content)
	})
}

// parseFlatQuiz decodes a flat-quiz payload. Models on this path are prone
// to emitting answerIndex as a quoted number or null, so those are coerced
// to integers first; schema validation afterwards is strict.
func parseFlatQuiz(payload string) (FlatQuiz, error) {
	doc, err := coerceAnswerIndexes(stripCodeFence(payload))
	if err != nil {
		return FlatQuiz{}, err
	}
	if err := validateAgainst(flatQuizSchema, doc); err != nil {
		return FlatQuiz{}, err
	}

	var out FlatQuiz
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return FlatQuiz{}, fmt.Errorf("decoding flat quiz: %w", err)
	}
	return out, nil
}

// coerceAnswerIndexes rewrites each question's answerIndex before strict
// validation: numeric strings are parsed, null or missing values default
// to 0 with a warning. Any other shape is left alone for the schema to
// reject.
func coerceAnswerIndexes(doc string) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return "", fmt.Errorf("decoding flat quiz envelope: %w", err)
	}

	var questions []map[string]json.RawMessage
	if err := json.Unmarshal(raw["questions"], &questions); err != nil {
		return "", fmt.Errorf("decoding flat quiz questions: %w", err)
	}

	for i, q := range questions {
		idx, ok := q["answerIndex"]
		if !ok || string(idx) == "null" {
			slog.Warn("flat quiz question missing answerIndex, defaulting to 0", "question", i)
			q["answerIndex"] = json.RawMessage("0")
			continue
		}

		var s string
		if err := json.Unmarshal(idx, &s); err == nil {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return "", fmt.Errorf("question %d: answerIndex %q is not numeric", i, s)
			}
			q["answerIndex"] = json.RawMessage(strconv.Itoa(n))
		}
	}

	coerced, err := json.Marshal(questions)
	if err != nil {
		return "", fmt.Errorf("re-encoding flat quiz questions: %w", err)
	}
	raw["questions"] = coerced

	out, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("re-encoding flat quiz: %w", err)
	}
	return string(out), nil
}
