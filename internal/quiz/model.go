// Package quiz holds the quiz and topic domain model and its persistence.
package quiz

import "time"

// QuizStatus is the lifecycle state of a quiz.
type QuizStatus string

const (
	QuizProcessing       QuizStatus = "processing"        // created, topic phase running
	QuizProcessingTopics QuizStatus = "processing_topics" // topics persisted, awaiting question generation
	QuizReady            QuizStatus = "ready"             // question set persisted
	QuizFailed           QuizStatus = "failed"            // unrecoverable stage error
)

// TopicStatus is the lifecycle state of a topic.
type TopicStatus string

const (
	TopicPending    TopicStatus = "pending"
	TopicProcessing TopicStatus = "processing"
	TopicReady      TopicStatus = "ready"
	TopicFailed     TopicStatus = "failed"
)

// Question is one multiple-choice question: exactly 4 options, one correct
// index. AnswerIndex is persisted but must never cross the quiz's external
// read boundary; use Public for outbound serialization.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
}

// Valid reports whether the question satisfies the MCQ shape invariants.
func (q Question) Valid() bool {
	if q.Question == "" || len(q.Options) != 4 {
		return false
	}
	for _, opt := range q.Options {
		if opt == "" {
			return false
		}
	}
	return q.AnswerIndex >= 0 && q.AnswerIndex <= 3
}

// PublicQuestion is the externally visible view of a Question.
type PublicQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Public strips the answer index for external readers.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{Question: q.Question, Options: q.Options}
}

// Quiz is a generated quiz for a source page.
type Quiz struct {
	ID        string     `json:"id"`
	SourceURL string     `json:"source_url"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions,omitempty"`
	Status    QuizStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Topic is a persisted, normalized unit of page content. Topics of a quiz
// form a forest: ParentID, when set, references a topic created earlier in
// the same batch with a strictly smaller level.
type Topic struct {
	ID            string      `json:"id"`
	QuizID        string      `json:"quiz_id"`
	Title         string      `json:"title"`
	Summary       string      `json:"summary,omitempty"`
	Level         int         `json:"level"`
	ParentID      string      `json:"parent_id,omitempty"`
	Content       []string    `json:"content"`
	TokenEstimate int         `json:"token_estimate"`
	Importance    int         `json:"importance,omitempty"`
	Status        TopicStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}
