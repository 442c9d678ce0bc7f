package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

// TestRepo stores generated tests per (user, video, playlist).
type TestRepo struct {
	pool *pgxpool.Pool
}

func NewTestRepo(pool *pgxpool.Pool) *TestRepo {
	return &TestRepo{pool: pool}
}

const testColumns = `user_id, video_id, playlist_id, questions, score, user_answers, performance_level, created_at`

func scanTest(row pgx.Row) (models.TestRecord, error) {
	var t models.TestRecord
	var questions, answers []byte
	err := row.Scan(&t.UserID, &t.VideoID, &t.PlaylistID, &questions, &t.Score, &answers, &t.PerformanceLevel, &t.CreatedAt)
	if err != nil {
		return models.TestRecord{}, err
	}
	if err := unmarshalIfSet(questions, &t.Questions); err != nil {
		return models.TestRecord{}, fmt.Errorf("decode questions: %w", err)
	}
	if err := unmarshalIfSet(answers, &t.UserAnswers); err != nil {
		return models.TestRecord{}, fmt.Errorf("decode user_answers: %w", err)
	}
	return t, nil
}

func (r *TestRepo) Get(ctx context.Context, key services.CacheKey) (models.TestRecord, bool, error) {
	query := `SELECT ` + testColumns + ` FROM video_tests WHERE user_id = $1 AND video_id = $2 AND playlist_id = $3`
	t, err := scanTest(r.pool.QueryRow(ctx, query, key.UserID, key.VideoID, key.PlaylistID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TestRecord{}, false, nil
	}
	if err != nil {
		return models.TestRecord{}, false, fmt.Errorf("get test: %w", err)
	}
	return t, true, nil
}

// Put stores a freshly generated test. Any previous score, answers and
// performance level for the key are cleared.
func (r *TestRepo) Put(ctx context.Context, key services.CacheKey, t models.TestRecord) error {
	query := `INSERT INTO video_tests (user_id, video_id, playlist_id, questions, score, user_answers, performance_level, created_at)
		VALUES ($1, $2, $3, $4, NULL, NULL, NULL, $5)
		ON CONFLICT (user_id, video_id, playlist_id) DO UPDATE SET
			questions = EXCLUDED.questions,
			score = NULL,
			user_answers = NULL,
			performance_level = NULL,
			created_at = EXCLUDED.created_at`

	_, err := r.pool.Exec(ctx, query, key.UserID, key.VideoID, key.PlaylistID, jsonArray(t.Questions), t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("put test: %w", err)
	}
	return nil
}

func (r *TestRepo) SaveResult(ctx context.Context, key services.CacheKey, score int, answers []int, level string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE video_tests SET score = $4, user_answers = $5, performance_level = $6
		WHERE user_id = $1 AND video_id = $2 AND playlist_id = $3`,
		key.UserID, key.VideoID, key.PlaylistID, score, jsonArray(answers), level)
	if err != nil {
		return fmt.Errorf("save test result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &services.NotFoundError{Message: "Test not found"}
	}
	return nil
}

// ListGraded returns the user's submitted tests for the playlist.
func (r *TestRepo) ListGraded(ctx context.Context, userID, playlistID string) ([]models.TestResult, error) {
	query := `SELECT ` + testColumns + ` FROM video_tests
		WHERE user_id = $1 AND playlist_id = $2 AND score IS NOT NULL
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list test results: %w", err)
	}
	defer rows.Close()

	var out []models.TestResult
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		if res, ok := t.Result(); ok {
			out = append(out, res)
		}
	}
	return out, rows.Err()
}
