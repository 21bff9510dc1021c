package quiz_test

import (
	"errors"
	"testing"

	"github.com/quizsmith/quizsmith/internal/quiz"
)

func readyQuiz(answerIndexes ...int) *quiz.Quiz {
	q := &quiz.Quiz{ID: "q1", Status: quiz.QuizReady}
	for _, idx := range answerIndexes {
		q.Questions = append(q.Questions, quiz.Question{
			Question:    "?",
			Options:     []string{"a", "b", "c", "d"},
			AnswerIndex: idx,
		})
	}
	return q
}

func TestScore(t *testing.T) {
	q := readyQuiz(0, 2, 1, 3, 0)

	result, err := quiz.Score(q, []int{0, 2, 1, 3, 1})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if result.CorrectCount != 4 {
		t.Errorf("CorrectCount = %d, want 4", result.CorrectCount)
	}
	if result.Score != 80 {
		t.Errorf("Score = %d, want 80", result.Score)
	}
	if result.Percentage != 80 {
		t.Errorf("Percentage = %d, want 80", result.Percentage)
	}

	wrong := 0
	for _, r := range result.Results {
		if !r.Correct {
			wrong++
			if r.QuestionIndex != 4 {
				t.Errorf("wrong answer at QuestionIndex = %d, want 4", r.QuestionIndex)
			}
		}
	}
	if wrong != 1 {
		t.Errorf("incorrect results = %d, want exactly 1", wrong)
	}
}

func TestScore_AllCorrect(t *testing.T) {
	q := readyQuiz(1, 1)
	result, err := quiz.Score(q, []int{1, 1})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.CorrectCount != 2 || result.Score != 100 {
		t.Errorf("CorrectCount = %d, Score = %d, want 2, 100", result.CorrectCount, result.Score)
	}
}

func TestScore_OutOfRangeAnswerIsIncorrect(t *testing.T) {
	q := readyQuiz(0)
	result, err := quiz.Score(q, []int{-1})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.CorrectCount != 0 {
		t.Errorf("CorrectCount = %d, want 0", result.CorrectCount)
	}
}

func TestScore_NotReady(t *testing.T) {
	q := &quiz.Quiz{ID: "q1", Status: quiz.QuizProcessing}
	_, err := quiz.Score(q, []int{0})
	if !errors.Is(err, quiz.ErrQuizNotReady) {
		t.Errorf("err = %v, want ErrQuizNotReady", err)
	}
}

func TestScore_LengthMismatch(t *testing.T) {
	q := readyQuiz(0, 1)
	if _, err := quiz.Score(q, []int{0}); err == nil {
		t.Error("Score() should reject a short answer array")
	}
}

func TestQuestion_Valid(t *testing.T) {
	tests := []struct {
		name string
		q    quiz.Question
		want bool
	}{
		{"valid", quiz.Question{Question: "?", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 3}, true},
		{"three-options", quiz.Question{Question: "?", Options: []string{"a", "b", "c"}, AnswerIndex: 0}, false},
		{"empty-option", quiz.Question{Question: "?", Options: []string{"a", "", "c", "d"}, AnswerIndex: 0}, false},
		{"empty-text", quiz.Question{Question: "", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 0}, false},
		{"index-too-big", quiz.Question{Question: "?", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 4}, false},
		{"negative-index", quiz.Question{Question: "?", Options: []string{"a", "b", "c", "d"}, AnswerIndex: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuestion_PublicStripsAnswer(t *testing.T) {
	q := quiz.Question{Question: "?", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 2}
	pub := q.Public()
	if pub.Question != "?" || len(pub.Options) != 4 {
		t.Errorf("Public() = %+v, want question and options preserved", pub)
	}
}
