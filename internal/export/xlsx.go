// Package export renders a ready quiz as an XLSX workbook: one sheet with
// the questions for handing out, one with the answer key. Correct answers
// never appear on the questions sheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/quizsmith/quizsmith/internal/quiz"
)

const (
	questionsSheet = "Questions"
	answerKeySheet = "Answer Key"
)

var optionLabels = [4]string{"A", "B", "C", "D"}

// ErrNotReady is returned when exporting a quiz that has no committed
// question set.
var ErrNotReady = fmt.Errorf("quiz is not ready for export")

// QuizWorkbook writes the quiz as an XLSX workbook to w.
func QuizWorkbook(q *quiz.Quiz, w io.Writer) error {
	if q.Status != quiz.QuizReady || len(q.Questions) == 0 {
		return ErrNotReady
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), questionsSheet)
	if _, err := f.NewSheet(answerKeySheet); err != nil {
		return fmt.Errorf("creating answer key sheet: %w", err)
	}

	if err := writeQuestions(f, q); err != nil {
		return err
	}
	if err := writeAnswerKey(f, q); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeQuestions(f *excelize.File, q *quiz.Quiz) error {
	header := []interface{}{"#", "Question", "Option A", "Option B", "Option C", "Option D"}
	if err := f.SetSheetRow(questionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing questions header: %w", err)
	}
	if q.Title != "" {
		if err := f.SetCellStr(questionsSheet, "H1", q.Title); err != nil {
			return fmt.Errorf("writing quiz title: %w", err)
		}
	}

	for i, question := range q.Questions {
		row := []interface{}{
			i + 1,
			question.Question,
			question.Options[0],
			question.Options[1],
			question.Options[2],
			question.Options[3],
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(questionsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing question %d: %w", i+1, err)
		}
	}
	return nil
}

func writeAnswerKey(f *excelize.File, q *quiz.Quiz) error {
	header := []interface{}{"#", "Correct Option", "Answer Text"}
	if err := f.SetSheetRow(answerKeySheet, "A1", &header); err != nil {
		return fmt.Errorf("writing answer key header: %w", err)
	}

	for i, question := range q.Questions {
		row := []interface{}{
			i + 1,
			optionLabels[question.AnswerIndex],
			question.Options[question.AnswerIndex],
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(answerKeySheet, cell, &row); err != nil {
			return fmt.Errorf("writing answer %d: %w", i+1, err)
		}
	}
	return nil
}
