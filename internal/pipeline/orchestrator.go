package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quizsmith/quizsmith/internal/ai"
	"github.com/quizsmith/quizsmith/internal/quiz"
	"github.com/quizsmith/quizsmith/internal/render"
)

const (
	// maxQuizQuestions caps the merged question list persisted per quiz.
	maxQuizQuestions = 10

	defaultMaxConcurrency    = 4
	defaultAutoFinalizeDelay = 30 * time.Second
)

// ErrNoSegments means the rendered page had no usable heading structure.
// It is fatal to the topic phase.
var ErrNoSegments = errors.New("no segments found in page")

// Orchestrator drives a quiz through its lifecycle: the topic phase
// (render, segment, normalize, enrich, persist) and the question phase
// (per-topic generation, merge, shuffle, cap, commit). All completion
// fan-out runs behind a bounded group; persistence of topics is
// sequential because children need their parent's generated id.
type Orchestrator struct {
	renderer render.Renderer
	store    quiz.Store

	enricher *Enricher
	topicGen *TopicQuizGenerator
	flatGen  *FlatQuizGenerator

	maxConcurrency int
	finalizeDelay  time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	background sync.WaitGroup
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxConcurrency caps concurrent completion calls per fan-out.
func WithMaxConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxConcurrency = n
		}
	}
}

// WithAutoFinalizeDelay sets how long after the topic phase the automatic
// question-generation fallback fires. A negative delay disables it.
func WithAutoFinalizeDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.finalizeDelay = d }
}

// WithRand injects the random source used for question shuffling; for
// tests that need a verifiable permutation.
func WithRand(r *rand.Rand) OrchestratorOption {
	return func(o *Orchestrator) { o.rng = r }
}

// NewOrchestrator wires the pipeline stages around one completer, one
// renderer and one store.
func NewOrchestrator(renderer render.Renderer, completer ai.Completer, store quiz.Store, retry ai.RetryConfig, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		renderer:       renderer,
		store:          store,
		enricher:       NewEnricher(completer, retry),
		topicGen:       NewTopicQuizGenerator(completer, retry),
		flatGen:        NewFlatQuizGenerator(completer, retry),
		maxConcurrency: defaultMaxConcurrency,
		finalizeDelay:  defaultAutoFinalizeDelay,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunTopicPhase takes a freshly created quiz from processing to
// processing_topics: render the page, segment, normalize, enrich every
// topic in parallel, then persist the forest sequentially. Any stage error
// forces the quiz to failed and is returned. On success a background
// finalization task is scheduled so the quiz eventually reaches ready even
// without an explicit selection request.
func (o *Orchestrator) RunTopicPhase(ctx context.Context, quizID, sourceURL string) error {
	markup, err := o.renderer.Render(ctx, sourceURL)
	if err != nil {
		return o.fail(quizID, fmt.Errorf("rendering %s: %w", sourceURL, err))
	}

	segments, err := Segment(markup)
	if err != nil {
		return o.fail(quizID, err)
	}
	if len(segments) == 0 {
		return o.fail(quizID, fmt.Errorf("%w: %s", ErrNoSegments, sourceURL))
	}

	topics := Normalize(segments)
	enrichments := o.enrichAll(ctx, topics)

	// Sequential persistence: resolve each topic's positional parent index
	// to the persisted id of its already-committed ancestor.
	ids := make([]string, len(topics))
	for i, topic := range topics {
		parentID := ""
		if topic.ParentIndex >= 0 {
			parentID = ids[topic.ParentIndex]
		}

		id, err := o.store.CreateTopic(quiz.Topic{
			QuizID:        quizID,
			Title:         enrichments[i].Title,
			Summary:       strings.Join(enrichments[i].Summary, "\n"),
			Level:         topic.Level,
			ParentID:      parentID,
			Content:       topic.Content,
			TokenEstimate: topic.TokenEstimate,
			Importance:    enrichments[i].Importance,
			Status:        quiz.TopicReady,
		})
		if err != nil {
			return o.fail(quizID, fmt.Errorf("persisting topic %q: %w", enrichments[i].Title, err))
		}
		ids[i] = id
	}

	if err := o.store.UpdateQuizStatus(quizID, quiz.QuizProcessingTopics); err != nil {
		return o.fail(quizID, fmt.Errorf("updating quiz status: %w", err))
	}

	slog.Info("topic phase complete", "quiz_id", quizID, "topics", len(topics))
	o.spawnAutoFinalize(quizID)
	return nil
}

// enrichAll fans out one enrichment call per topic behind the concurrency
// cap and joins on all of them. A topic whose retries are exhausted gets
// the fallback enrichment; enrichment never fails the batch.
func (o *Orchestrator) enrichAll(ctx context.Context, topics []NormalizedTopic) []Enrichment {
	enrichments := make([]Enrichment, len(topics))

	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, topic := range topics {
		g.Go(func() error {
			enriched, err := o.enricher.Enrich(ctx, topic)
			if err != nil {
				enriched = FallbackEnrichment(topic)
			}
			enrichments[i] = enriched
			return nil
		})
	}
	g.Wait()
	return enrichments
}

// GenerateQuestions runs the question phase: generate per-topic question
// lists in parallel, flatten, shuffle, cap at 10, and commit with the quiz
// title. An empty topicIDs selects every topic of the quiz. A topic whose
// generation fails contributes nothing; only a fully empty result is an
// error. Before committing, the quiz is re-read: if it is already ready
// with questions, the write is skipped and the existing count returned.
func (o *Orchestrator) GenerateQuestions(ctx context.Context, quizID string, topicIDs []string, difficulty Difficulty) (int, error) {
	if _, err := o.store.GetQuiz(quizID); err != nil {
		return 0, err
	}

	topics, err := o.selectTopics(quizID, topicIDs)
	if err != nil {
		return 0, err
	}

	perTopic := make([][]quiz.Question, len(topics))
	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, topic := range topics {
		g.Go(func() error {
			questions, err := o.topicGen.Generate(ctx, topic, difficulty)
			if err != nil {
				slog.Warn("question generation failed for topic, contributing nothing",
					"quiz_id", quizID, "topic_id", topic.ID, "error", err)
				return nil
			}
			perTopic[i] = questions
			return nil
		})
	}
	g.Wait()

	var merged []quiz.Question
	for _, questions := range perTopic {
		merged = append(merged, questions...)
	}
	if len(merged) == 0 {
		return 0, fmt.Errorf("question generation produced no questions for quiz %s", quizID)
	}

	o.shuffle(merged)
	if len(merged) > maxQuizQuestions {
		merged = merged[:maxQuizQuestions]
	}

	return o.commitQuestions(quizID, quizTitle(topics), merged)
}

// selectTopics resolves the requested topic set. Explicit ids must all
// belong to the quiz.
func (o *Orchestrator) selectTopics(quizID string, topicIDs []string) ([]quiz.Topic, error) {
	if len(topicIDs) == 0 {
		topics, err := o.store.TopicsByQuiz(quizID)
		if err != nil {
			return nil, err
		}
		if len(topics) == 0 {
			return nil, fmt.Errorf("quiz %s has no topics", quizID)
		}
		return topics, nil
	}

	topics, err := o.store.TopicsByIDs(quizID, topicIDs)
	if err != nil {
		return nil, err
	}
	if len(topics) != len(topicIDs) {
		return nil, fmt.Errorf("quiz %s: %d of %d requested topics not found",
			quizID, len(topicIDs)-len(topics), len(topicIDs))
	}
	return topics, nil
}

// GenerateFlatQuiz runs the single-pass path: condense the page into key
// points and synthesize one 5-10 question quiz, without the topic forest.
// Stage errors force the quiz to failed.
func (o *Orchestrator) GenerateFlatQuiz(ctx context.Context, quizID, sourceURL string) (int, error) {
	markup, err := o.renderer.Render(ctx, sourceURL)
	if err != nil {
		return 0, o.fail(quizID, fmt.Errorf("rendering %s: %w", sourceURL, err))
	}

	segments, err := Segment(markup)
	if err != nil {
		return 0, o.fail(quizID, err)
	}
	if len(segments) == 0 {
		// No heading structure: condense the whole page text instead.
		text, err := pageText(markup)
		if err != nil || strings.TrimSpace(text) == "" {
			return 0, o.fail(quizID, fmt.Errorf("%w: %s", ErrNoSegments, sourceURL))
		}
		segments = []RawSegment{{Title: "Page", Level: 1, Content: []string{text}}}
	}

	keyPoints, err := o.flatGen.CondenseKeyPoints(ctx, segments)
	if err != nil {
		return 0, o.fail(quizID, err)
	}

	flat, err := o.flatGen.Generate(ctx, keyPoints)
	if err != nil {
		return 0, o.fail(quizID, err)
	}

	return o.commitQuestions(quizID, flat.Title, flat.Questions)
}

// commitQuestions persists the final question list behind the re-read race
// guard: when the quiz is already ready with questions, the losing writer
// skips its write and reports the committed count.
func (o *Orchestrator) commitQuestions(quizID, title string, questions []quiz.Question) (int, error) {
	current, err := o.store.GetQuiz(quizID)
	if err != nil {
		return 0, err
	}
	if current.Status == quiz.QuizReady && len(current.Questions) > 0 {
		slog.Info("quiz already finalized, skipping write", "quiz_id", quizID)
		return len(current.Questions), nil
	}

	if err := o.store.SetQuizQuestions(quizID, title, questions); err != nil {
		return 0, fmt.Errorf("persisting questions for quiz %s: %w", quizID, err)
	}
	slog.Info("quiz ready", "quiz_id", quizID, "questions", len(questions))
	return len(questions), nil
}

// spawnAutoFinalize schedules the best-effort background finalization. Its
// errors are logged, never surfaced; the race guard makes it lose cleanly
// to any explicit request that finishes first.
func (o *Orchestrator) spawnAutoFinalize(quizID string) {
	if o.finalizeDelay < 0 {
		return
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		time.Sleep(o.finalizeDelay)
		o.autoFinalize(quizID)
	}()
}

func (o *Orchestrator) autoFinalize(quizID string) {
	current, err := o.store.GetQuiz(quizID)
	if err != nil {
		slog.Warn("auto finalize: quiz lookup failed", "quiz_id", quizID, "error", err)
		return
	}
	if current.Status != quiz.QuizProcessingTopics {
		return
	}

	if _, err := o.GenerateQuestions(context.Background(), quizID, nil, DifficultyMedium); err != nil {
		slog.Warn("auto finalize failed", "quiz_id", quizID, "error", err)
	}
}

// Wait blocks until all spawned background tasks finish; for shutdown.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// fail forces the quiz to failed and returns err. The status write itself
// is best effort.
func (o *Orchestrator) fail(quizID string, err error) error {
	slog.Error("pipeline stage failed", "quiz_id", quizID, "error", err)
	if werr := o.store.UpdateQuizStatus(quizID, quiz.QuizFailed); werr != nil {
		slog.Error("failed to mark quiz as failed", "quiz_id", quizID, "error", werr)
	}
	return err
}


// shuffle runs an in-place Fisher-Yates pass over the merged questions.
func (o *Orchestrator) shuffle(questions []quiz.Question) {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	for i := len(questions) - 1; i > 0; i-- {
		j := o.rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}

// quizTitle derives the committed quiz title from the first selected topic.
func quizTitle(topics []quiz.Topic) string {
	if len(topics) == 0 {
		return ""
	}
	return topics[0].Title
}
