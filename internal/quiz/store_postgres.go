package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed quiz store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateQuiz(q Quiz) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if q.SourceURL == "" {
		return "", fmt.Errorf("source_url is required")
	}

	status := q.Status
	if status == "" {
		status = QuizProcessing
	}

	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quizzes (source_url, status)
		 VALUES ($1, $2)
		 RETURNING id::text`,
		q.SourceURL,
		string(status),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create quiz: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetQuiz(id string) (*Quiz, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	q := &Quiz{}
	var title *string
	var questionsJSON []byte
	var status string

	err := s.pool.QueryRow(ctx,
		`SELECT id::text, source_url, title, questions, status, created_at
		 FROM quizzes
		 WHERE id = $1::uuid`,
		id,
	).Scan(&q.ID, &q.SourceURL, &title, &questionsJSON, &status, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quiz not found: %s", id)
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	if title != nil {
		q.Title = *title
	}
	q.Status = QuizStatus(status)
	if len(questionsJSON) > 0 {
		if err := json.Unmarshal(questionsJSON, &q.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	return q, nil
}

func (s *PostgresStore) UpdateQuizStatus(id string, status QuizStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET status = $2 WHERE id = $1::uuid`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update quiz status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("quiz not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SetQuizQuestions(id, title string, questions []Question) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE quizzes
		 SET title = $2, questions = $3, status = $4
		 WHERE id = $1::uuid`,
		id, nullIfEmpty(title), questionsJSON, string(QuizReady),
	)
	if err != nil {
		return fmt.Errorf("set quiz questions: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("quiz not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateTopic(tp Topic) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if tp.QuizID == "" {
		return "", fmt.Errorf("quiz_id is required")
	}

	status := tp.Status
	if status == "" {
		status = TopicPending
	}

	contentJSON, err := json.Marshal(tp.Content)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO topics (quiz_id, title, summary, level, parent_id, content, token_estimate, importance, status)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id::text`,
		tp.QuizID,
		tp.Title,
		nullIfEmpty(tp.Summary),
		tp.Level,
		nullIfEmpty(tp.ParentID),
		contentJSON,
		tp.TokenEstimate,
		nullIfZero(tp.Importance),
		string(status),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) TopicsByQuiz(quizID string) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, quiz_id::text, title, summary, level, parent_id::text, content, token_estimate, importance, status, created_at
		 FROM topics
		 WHERE quiz_id = $1::uuid
		 ORDER BY created_at ASC`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	return scanTopics(rows)
}

func (s *PostgresStore) TopicsByIDs(quizID string, ids []string) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, quiz_id::text, title, summary, level, parent_id::text, content, token_estimate, importance, status, created_at
		 FROM topics
		 WHERE quiz_id = $1::uuid AND id = ANY($2::uuid[])
		 ORDER BY created_at ASC`,
		quizID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query topics by ids: %w", err)
	}
	defer rows.Close()

	return scanTopics(rows)
}

func scanTopics(rows pgx.Rows) ([]Topic, error) {
	var topics []Topic
	for rows.Next() {
		var tp Topic
		var summary, parentID *string
		var importance *int
		var contentJSON []byte
		var status string

		if err := rows.Scan(
			&tp.ID,
			&tp.QuizID,
			&tp.Title,
			&summary,
			&tp.Level,
			&parentID,
			&contentJSON,
			&tp.TokenEstimate,
			&importance,
			&status,
			&tp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}

		if summary != nil {
			tp.Summary = *summary
		}
		if parentID != nil {
			tp.ParentID = *parentID
		}
		if importance != nil {
			tp.Importance = *importance
		}
		tp.Status = TopicStatus(status)
		if err := json.Unmarshal(contentJSON, &tp.Content); err != nil {
			return nil, fmt.Errorf("decode topic content: %w", err)
		}
		topics = append(topics, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

func nullIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
