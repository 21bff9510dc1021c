package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quizsmith/quizsmith/internal/export"
	"github.com/quizsmith/quizsmith/internal/pipeline"
	"github.com/quizsmith/quizsmith/internal/quiz"
)

// healthChecker is implemented by the database and cache wrappers.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type server struct {
	store quiz.Store
	orch  *pipeline.Orchestrator
	deps  map[string]healthChecker // readiness checks by name
}

func newServer(store quiz.Store, orch *pipeline.Orchestrator, deps map[string]healthChecker) *server {
	return &server{store: store, orch: orch, deps: deps}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("POST /quizzes", s.handleCreateQuiz)
	mux.HandleFunc("GET /quizzes/{id}", s.handleGetQuiz)
	mux.HandleFunc("GET /quizzes/{id}/topics", s.handleListTopics)
	mux.HandleFunc("POST /quizzes/{id}/questions", s.handleGenerateQuestions)
	mux.HandleFunc("POST /quizzes/{id}/submit", s.handleSubmit)
	mux.HandleFunc("GET /quizzes/{id}/export", s.handleExport)
	return mux
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, dep := range s.deps {
		if err := dep.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"failed": name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createQuizRequest struct {
	SourceURL string `json:"sourceUrl"`
	// Mode selects the pipeline: "topics" (default) or "flat".
	Mode string `json:"mode,omitempty"`
}

func (s *server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SourceURL == "" {
		writeError(w, http.StatusBadRequest, "sourceUrl is required")
		return
	}
	if req.Mode != "" && req.Mode != "topics" && req.Mode != "flat" {
		writeError(w, http.StatusBadRequest, "mode must be \"topics\" or \"flat\"")
		return
	}

	id, err := s.store.CreateQuiz(quiz.Quiz{SourceURL: req.SourceURL})
	if err != nil {
		slog.Error("failed to create quiz", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create quiz")
		return
	}

	// The pipeline outlives the request; progress is observable through
	// the quiz status.
	go func() {
		ctx := context.Background()
		var runErr error
		if req.Mode == "flat" {
			_, runErr = s.orch.GenerateFlatQuiz(ctx, id, req.SourceURL)
		} else {
			runErr = s.orch.RunTopicPhase(ctx, id, req.SourceURL)
		}
		if runErr != nil {
			slog.Error("pipeline run failed", "quiz_id", id, "error", runErr)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": string(quiz.QuizProcessing),
	})
}

// quizView is the external projection of a quiz. Questions are stripped of
// their answer indexes.
type quizView struct {
	ID        string                `json:"id"`
	SourceURL string                `json:"sourceUrl"`
	Title     string                `json:"title,omitempty"`
	Status    quiz.QuizStatus       `json:"status"`
	Questions []quiz.PublicQuestion `json:"questions,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

func viewOf(q *quiz.Quiz) quizView {
	view := quizView{
		ID:        q.ID,
		SourceURL: q.SourceURL,
		Title:     q.Title,
		Status:    q.Status,
		CreatedAt: q.CreatedAt,
	}
	for _, question := range q.Questions {
		view.Questions = append(view.Questions, question.Public())
	}
	return view
}

func (s *server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	q, ok := s.quizFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(q))
}

func (s *server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	q, ok := s.quizFor(w, r)
	if !ok {
		return
	}

	topics, err := s.store.TopicsByQuiz(q.ID)
	if err != nil {
		slog.Error("failed to list topics", "quiz_id", q.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list topics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

type generateRequest struct {
	TopicIDs   []string `json:"topicIds,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

func (s *server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	q, ok := s.quizFor(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	difficulty := pipeline.Difficulty(req.Difficulty)
	if req.Difficulty == "" {
		difficulty = pipeline.DifficultyMedium
	}
	if !difficulty.Valid() {
		writeError(w, http.StatusBadRequest, "difficulty must be easy, medium or hard")
		return
	}

	count, err := s.orch.GenerateQuestions(r.Context(), q.ID, req.TopicIDs, difficulty)
	if err != nil {
		slog.Error("question generation failed", "quiz_id", q.ID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "question generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questionCount": count,
		"status":        string(quiz.QuizReady),
	})
}

type submitRequest struct {
	Answers []int `json:"answers"`
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	q, ok := s.quizFor(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := quiz.Score(q, req.Answers)
	if err != nil {
		if errors.Is(err, quiz.ErrQuizNotReady) {
			writeError(w, http.StatusConflict, "quiz is not ready")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, ok := s.quizFor(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.QuizWorkbook(q, &buf); err != nil {
		if errors.Is(err, export.ErrNotReady) {
			writeError(w, http.StatusConflict, "quiz is not ready")
			return
		}
		slog.Error("export failed", "quiz_id", q.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "quiz-"+q.ID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// quizFor loads the quiz named by the path id, writing a 404 on a miss.
func (s *server) quizFor(w http.ResponseWriter, r *http.Request) (*quiz.Quiz, bool) {
	q, err := s.store.GetQuiz(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "quiz not found")
		return nil, false
	}
	return q, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
