package pipeline_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/quizsmith/quizsmith/internal/ai"
	"github.com/quizsmith/quizsmith/internal/pipeline"
	"github.com/quizsmith/quizsmith/internal/quiz"
)

func topicQuizJSON(n int) string {
	var questions []string
	for i := 0; i < n; i++ {
		questions = append(questions, fmt.Sprintf(
			`{"question":"Q%d?","options":["a","b","c","d"],"answerIndex":%d}`, i, i%4))
	}
	return `{"questions":[` + strings.Join(questions, ",") + `]}`
}

func TestTopicQuizGenerator_Generate(t *testing.T) {
	mock := ai.NewMockProvider(topicQuizJSON(3))
	gen := pipeline.NewTopicQuizGenerator(mock, testRetry())

	topic := quiz.Topic{Title: "Goroutines", Content: []string{strings.Repeat("x", 1000)}}
	questions, err := gen.Generate(context.Background(), topic, pipeline.DifficultyMedium)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(questions))
	}
	for i, q := range questions {
		if !q.Valid() {
			t.Errorf("questions[%d] = %+v is not a valid MCQ", i, q)
		}
	}
}

func TestTopicQuizGenerator_TargetCountTracksContentSize(t *testing.T) {
	tests := []struct {
		name        string
		contentSize int
		wantCount   int
	}{
		{"small content", 200, 2},
		{"medium content", 1000, 3},
		{"large content", 3000, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := ai.NewMockProvider(topicQuizJSON(2))
			gen := pipeline.NewTopicQuizGenerator(mock, testRetry())

			topic := quiz.Topic{Title: "T", Content: []string{strings.Repeat("x", tt.contentSize)}}
			if _, err := gen.Generate(context.Background(), topic, pipeline.DifficultyEasy); err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			prompt := mock.LastRequest.Messages[len(mock.LastRequest.Messages)-1].Content
			want := fmt.Sprintf("Write %d easy questions", tt.wantCount)
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt %q should contain %q", prompt, want)
			}
		})
	}
}

func TestTopicQuizGenerator_AcceptsCountBelowTarget(t *testing.T) {
	// Target for large content is 4, but any response in the 2..4 schema
	// bound passes.
	mock := ai.NewMockProvider(topicQuizJSON(2))
	gen := pipeline.NewTopicQuizGenerator(mock, testRetry())

	topic := quiz.Topic{Title: "T", Content: []string{strings.Repeat("x", 3000)}}
	questions, err := gen.Generate(context.Background(), topic, pipeline.DifficultyHard)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(questions) != 2 {
		t.Errorf("questions = %d, want the 2 the model produced", len(questions))
	}
}

func TestTopicQuizGenerator_RetriesSchemaViolations(t *testing.T) {
	mock := &ai.MockProvider{Responses: []string{
		topicQuizJSON(1), // below the 2-question floor
		`{"questions":[{"question":"Q?","options":["a","b","c"],"answerIndex":0},{"question":"Q?","options":["a","b","c"],"answerIndex":0}]}`,
		topicQuizJSON(3),
	}}
	gen := pipeline.NewTopicQuizGenerator(mock, testRetry())

	topic := quiz.Topic{Title: "T", Content: []string{"x"}}
	questions, err := gen.Generate(context.Background(), topic, pipeline.DifficultyMedium)
	if err != nil {
		t.Fatalf("Generate() error = %v, want success on the third attempt", err)
	}
	if mock.Calls != 3 {
		t.Errorf("Calls = %d, want 3", mock.Calls)
	}
	if len(questions) != 3 {
		t.Errorf("questions = %d, want 3", len(questions))
	}
}

func TestTopicQuizGenerator_UnknownDifficulty(t *testing.T) {
	mock := ai.NewMockProvider(topicQuizJSON(2))
	gen := pipeline.NewTopicQuizGenerator(mock, testRetry())

	if _, err := gen.Generate(context.Background(), quiz.Topic{Title: "T", Content: []string{"x"}}, "extreme"); err == nil {
		t.Fatal("Generate() should reject an unknown difficulty")
	}
	if mock.Calls != 0 {
		t.Errorf("Calls = %d, want 0 (no completion call for a bad difficulty)", mock.Calls)
	}
}

func TestGeneratedQuestions_RoundTrip(t *testing.T) {
	mock := ai.NewMockProvider(topicQuizJSON(4))
	gen := pipeline.NewTopicQuizGenerator(mock, testRetry())

	questions, err := gen.Generate(context.Background(), quiz.Topic{Title: "T", Content: []string{strings.Repeat("x", 3000)}}, pipeline.DifficultyMedium)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	encoded, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded []quiz.Question
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for i, q := range decoded {
		if len(q.Options) != 4 || q.AnswerIndex < 0 || q.AnswerIndex > 3 {
			t.Errorf("decoded[%d] = %+v violates the MCQ shape", i, q)
		}
	}
}
