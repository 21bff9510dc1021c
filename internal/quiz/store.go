package quiz

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// Store persists quizzes and topics. Implementations handle their own
// timeouts; the pipeline treats every call as a suspension point.
type Store interface {
	CreateQuiz(q Quiz) (string, error)
	GetQuiz(id string) (*Quiz, error)
	UpdateQuizStatus(id string, status QuizStatus) error
	// SetQuizQuestions commits the final question list and title and moves
	// the quiz to ready in a single write.
	SetQuizQuestions(id, title string, questions []Question) error

	// CreateTopic persists one topic. Topics are inserted sequentially in
	// normalized order because a child's ParentID needs its parent's
	// generated id.
	CreateTopic(tp Topic) (string, error)
	// TopicsByQuiz returns the quiz's topics in creation order.
	TopicsByQuiz(quizID string) ([]Topic, error)
	// TopicsByIDs returns only topics that belong to the quiz and match ids.
	TopicsByIDs(quizID string, ids []string) ([]Topic, error)
}

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	quizzes    map[string]*Quiz
	topics     map[string]*Topic
	topicOrder map[string][]string // quizID -> topic ids in creation order
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes:    make(map[string]*Quiz),
		topics:     make(map[string]*Topic),
		topicOrder: make(map[string][]string),
	}
}

func (s *MemoryStore) CreateQuiz(q Quiz) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := generateID()
	q.ID = id
	if q.Status == "" {
		q.Status = QuizProcessing
	}
	q.CreatedAt = time.Now()
	s.quizzes[id] = &q
	return id, nil
}

func (s *MemoryStore) GetQuiz(id string) (*Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz not found: %s", id)
	}
	out := *q
	out.Questions = append([]Question(nil), q.Questions...)
	return &out, nil
}

func (s *MemoryStore) UpdateQuizStatus(id string, status QuizStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return fmt.Errorf("quiz not found: %s", id)
	}
	q.Status = status
	return nil
}

func (s *MemoryStore) SetQuizQuestions(id, title string, questions []Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quizzes[id]
	if !ok {
		return fmt.Errorf("quiz not found: %s", id)
	}
	q.Title = title
	q.Questions = append([]Question(nil), questions...)
	q.Status = QuizReady
	return nil
}

func (s *MemoryStore) CreateTopic(tp Topic) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quizzes[tp.QuizID]; !ok {
		return "", fmt.Errorf("quiz not found: %s", tp.QuizID)
	}
	if tp.ParentID != "" {
		if _, ok := s.topics[tp.ParentID]; !ok {
			return "", fmt.Errorf("parent topic not found: %s", tp.ParentID)
		}
	}

	id := generateID()
	tp.ID = id
	if tp.Status == "" {
		tp.Status = TopicPending
	}
	tp.CreatedAt = time.Now()
	s.topics[id] = &tp
	s.topicOrder[tp.QuizID] = append(s.topicOrder[tp.QuizID], id)
	return id, nil
}

func (s *MemoryStore) TopicsByQuiz(quizID string) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.topicOrder[quizID]
	topics := make([]Topic, 0, len(ids))
	for _, id := range ids {
		topics = append(topics, *s.topics[id])
	}
	return topics, nil
}

func (s *MemoryStore) TopicsByIDs(quizID string, ids []string) ([]Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var topics []Topic
	for _, id := range ids {
		tp, ok := s.topics[id]
		if !ok || tp.QuizID != quizID {
			continue
		}
		topics = append(topics, *tp)
	}
	return topics, nil
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
