package quiz_test

import (
	"testing"

	"github.com/quizsmith/quizsmith/internal/quiz"
)

func TestStore_QuizLifecycle(t *testing.T) {
	store := quiz.NewMemoryStore()

	id, err := store.CreateQuiz(quiz.Quiz{SourceURL: "https://example.com/article"})
	if err != nil {
		t.Fatalf("CreateQuiz() error = %v", err)
	}
	if id == "" {
		t.Fatal("CreateQuiz() returned empty ID")
	}

	got, err := store.GetQuiz(id)
	if err != nil {
		t.Fatalf("GetQuiz() error = %v", err)
	}
	if got.Status != quiz.QuizProcessing {
		t.Errorf("Status = %q, want %q", got.Status, quiz.QuizProcessing)
	}
	if got.Title != "" || len(got.Questions) != 0 {
		t.Error("new quiz should have no title and no questions")
	}

	if err := store.UpdateQuizStatus(id, quiz.QuizProcessingTopics); err != nil {
		t.Fatalf("UpdateQuizStatus() error = %v", err)
	}

	questions := []quiz.Question{
		{Question: "?", Options: []string{"a", "b", "c", "d"}, AnswerIndex: 1},
	}
	if err := store.SetQuizQuestions(id, "Example Quiz", questions); err != nil {
		t.Fatalf("SetQuizQuestions() error = %v", err)
	}

	got, _ = store.GetQuiz(id)
	if got.Status != quiz.QuizReady {
		t.Errorf("Status = %q, want %q", got.Status, quiz.QuizReady)
	}
	if got.Title != "Example Quiz" {
		t.Errorf("Title = %q, want %q", got.Title, "Example Quiz")
	}
	if len(got.Questions) != 1 {
		t.Errorf("Questions = %d, want 1", len(got.Questions))
	}
}

func TestStore_GetQuiz_NotFound(t *testing.T) {
	store := quiz.NewMemoryStore()
	if _, err := store.GetQuiz("nonexistent"); err == nil {
		t.Error("GetQuiz() should fail for unknown id")
	}
}

func TestStore_GetQuiz_ReturnsCopy(t *testing.T) {
	store := quiz.NewMemoryStore()
	id, _ := store.CreateQuiz(quiz.Quiz{SourceURL: "https://example.com"})

	got, _ := store.GetQuiz(id)
	got.Status = quiz.QuizFailed

	fresh, _ := store.GetQuiz(id)
	if fresh.Status != quiz.QuizProcessing {
		t.Error("mutating a returned quiz should not affect the store")
	}
}

func TestStore_TopicsPreserveCreationOrder(t *testing.T) {
	store := quiz.NewMemoryStore()
	quizID, _ := store.CreateQuiz(quiz.Quiz{SourceURL: "https://example.com"})

	rootID, err := store.CreateTopic(quiz.Topic{
		QuizID:  quizID,
		Title:   "Root",
		Level:   1,
		Content: []string{"intro"},
		Status:  quiz.TopicReady,
	})
	if err != nil {
		t.Fatalf("CreateTopic() error = %v", err)
	}

	childID, err := store.CreateTopic(quiz.Topic{
		QuizID:   quizID,
		Title:    "Child",
		Level:    2,
		ParentID: rootID,
		Content:  []string{"details"},
		Status:   quiz.TopicReady,
	})
	if err != nil {
		t.Fatalf("CreateTopic() child error = %v", err)
	}

	topics, err := store.TopicsByQuiz(quizID)
	if err != nil {
		t.Fatalf("TopicsByQuiz() error = %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("topics = %d, want 2", len(topics))
	}
	if topics[0].ID != rootID || topics[1].ID != childID {
		t.Error("TopicsByQuiz() should preserve creation order")
	}
	if topics[1].ParentID != rootID {
		t.Errorf("child ParentID = %q, want %q", topics[1].ParentID, rootID)
	}
}

func TestStore_CreateTopic_UnknownParent(t *testing.T) {
	store := quiz.NewMemoryStore()
	quizID, _ := store.CreateQuiz(quiz.Quiz{SourceURL: "https://example.com"})

	_, err := store.CreateTopic(quiz.Topic{
		QuizID:   quizID,
		Title:    "Orphan",
		Level:    2,
		ParentID: "missing",
		Content:  []string{"x"},
	})
	if err == nil {
		t.Error("CreateTopic() should reject an unknown parent id")
	}
}

func TestStore_TopicsByIDs_FiltersOwnership(t *testing.T) {
	store := quiz.NewMemoryStore()
	quizA, _ := store.CreateQuiz(quiz.Quiz{SourceURL: "https://a.example.com"})
	quizB, _ := store.CreateQuiz(quiz.Quiz{SourceURL: "https://b.example.com"})

	topicA, _ := store.CreateTopic(quiz.Topic{QuizID: quizA, Title: "A", Level: 1, Content: []string{"a"}})
	topicB, _ := store.CreateTopic(quiz.Topic{QuizID: quizB, Title: "B", Level: 1, Content: []string{"b"}})

	topics, err := store.TopicsByIDs(quizA, []string{topicA, topicB, "missing"})
	if err != nil {
		t.Fatalf("TopicsByIDs() error = %v", err)
	}
	if len(topics) != 1 || topics[0].ID != topicA {
		t.Errorf("TopicsByIDs() = %+v, want only the quiz's own topic", topics)
	}
}
