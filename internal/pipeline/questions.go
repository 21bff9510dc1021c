package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizsmith/quizsmith/internal/ai"
	"github.com/quizsmith/quizsmith/internal/quiz"
)

// Difficulty selects the requested question difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a recognized difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

const (
	minTopicQuestions = 2
	maxTopicQuestions = 4

	smallContentChars = 500
	largeContentChars = 2000
)

// targetQuestionCount scales the requested question count with content
// size. The count is a target, not a contract: any response within the
// 2..4 schema bounds is accepted.
func targetQuestionCount(content []string) int {
	size := contentLength(content)
	switch {
	case size < smallContentChars:
		return minTopicQuestions
	case size > largeContentChars:
		return maxTopicQuestions
	default:
		return 3
	}
}

// TopicQuizGenerator produces multiple-choice questions for a single
// persisted topic.
type TopicQuizGenerator struct {
	completer ai.Completer
	retry     ai.RetryConfig
}

// NewTopicQuizGenerator returns a generator backed by the given completer.
func NewTopicQuizGenerator(completer ai.Completer, retry ai.RetryConfig) *TopicQuizGenerator {
	return &TopicQuizGenerator{completer: completer, retry: retry}
}

const topicQuizSystemPrompt = `You write multiple-choice questions about one topic.
Respond with a single JSON object and nothing else:
{"questions": [{"question": string, "options": [string, string, string, string], "answerIndex": integer}]}
Rules:
- Every question has exactly 4 options and one correct answerIndex (0-3).
- Questions must be answerable from the provided content alone.`

// Generate asks the completion gateway for questions about the topic,
// retrying the whole call on transport, parse or validation failures.
func (g *TopicQuizGenerator) Generate(ctx context.Context, topic quiz.Topic, difficulty Difficulty) ([]quiz.Question, error) {
	if !difficulty.Valid() {
		return nil, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	return ai.Retry(ctx, g.retry, func(ctx context.Context) ([]quiz.Question, error) {
		resp, err := g.completer.Complete(ctx, ai.CompletionRequest{
			Messages: []ai.Message{
				{Role: "system", Content: topicQuizSystemPrompt},
				{Role: "user", Content: topicQuizUserPrompt(topic, difficulty)},
			},
			Temperature: 0.7,
		})
		if err != nil {
			return nil, fmt.Errorf("generating questions for topic %q: %w", topic.Title, err)
		}
		return parseTopicQuiz(resp.Content, topic.Title)
	})
}

func topicQuizUserPrompt(topic quiz.Topic, difficulty Difficulty) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s questions about %q.\n", targetQuestionCount(topic.Content), difficulty, topic.Title)
	if topic.Summary != "" {
		fmt.Fprintf(&b, "Summary:\n%s\n", topic.Summary)
	}
	b.WriteString("Content:\n")
	for _, para := range topic.Content {
		b.WriteString(para)
		b.WriteString("\n")
	}
	return b.String()
}

func parseTopicQuiz(payload, topicTitle string) ([]quiz.Question, error) {
	doc := stripCodeFence(payload)
	if err := validateAgainst(topicQuizSchema, doc); err != nil {
		return nil, fmt.Errorf("topic %q: %w", topicTitle, err)
	}

	var out struct {
		Questions []quiz.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("decoding questions for topic %q: %w", topicTitle, err)
	}
	return out.Questions, nil
}
