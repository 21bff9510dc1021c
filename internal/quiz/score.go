package quiz

import (
	"errors"
	"fmt"
	"math"
)

// ErrQuizNotReady is returned when scoring a quiz that has no committed
// question set yet.
var ErrQuizNotReady = errors.New("quiz is not ready")

// QuestionResult is the per-question scoring breakdown.
type QuestionResult struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
	SelectedIndex int  `json:"selectedIndex"`
	CorrectIndex  int  `json:"correctIndex"`
}

// ScoreResult reports how a submitted answer array scored against a quiz.
type ScoreResult struct {
	CorrectCount int              `json:"correctCount"`
	Total        int              `json:"total"`
	Score        int              `json:"score"`
	Percentage   int              `json:"percentage"`
	Results      []QuestionResult `json:"results"`
}

// Score grades submitted answers against the quiz's persisted answer
// indexes. It is pure: no I/O, no suspension points. Answers out of the
// [0,3] range count as incorrect.
func Score(q *Quiz, answers []int) (*ScoreResult, error) {
	if q.Status != QuizReady || len(q.Questions) == 0 {
		return nil, ErrQuizNotReady
	}
	if len(answers) != len(q.Questions) {
		return nil, fmt.Errorf("expected %d answers, got %d", len(q.Questions), len(answers))
	}

	result := &ScoreResult{
		Total:   len(q.Questions),
		Results: make([]QuestionResult, len(q.Questions)),
	}
	for i, question := range q.Questions {
		correct := answers[i] == question.AnswerIndex
		if correct {
			result.CorrectCount++
		}
		result.Results[i] = QuestionResult{
			QuestionIndex: i,
			Correct:       correct,
			SelectedIndex: answers[i],
			CorrectIndex:  question.AnswerIndex,
		}
	}

	pct := int(math.Round(float64(result.CorrectCount) / float64(result.Total) * 100))
	result.Score = pct
	result.Percentage = pct
	return result, nil
}
