package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubetrack-backend/internal/models"
)

// upsertProgressQuery keeps whichever write carries the later updated_at.
const upsertProgressQuery = `
INSERT INTO user_progress (user_id, video_id, playlist_id, completed, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, video_id, playlist_id)
DO UPDATE SET
	completed = EXCLUDED.completed,
	updated_at = EXCLUDED.updated_at
WHERE user_progress.updated_at <= EXCLUDED.updated_at`

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

func (r *ProgressRepo) ListByPlaylist(ctx context.Context, userID, playlistID string) ([]models.ProgressRecord, error) {
	query := `SELECT user_id, video_id, playlist_id, completed, updated_at
		FROM user_progress WHERE user_id = $1 AND playlist_id = $2`

	rows, err := r.pool.Query(ctx, query, userID, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []models.ProgressRecord
	for rows.Next() {
		var p models.ProgressRecord
		if err := rows.Scan(&p.UserID, &p.VideoID, &p.PlaylistID, &p.Completed, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProgressRepo) Upsert(ctx context.Context, rec models.ProgressRecord) error {
	_, err := r.pool.Exec(ctx, upsertProgressQuery,
		rec.UserID, rec.VideoID, rec.PlaylistID, rec.Completed, rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

// UpsertBatch writes every record for userID or none of them.
func (r *ProgressRepo) UpsertBatch(ctx context.Context, userID string, recs []models.ProgressRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin progress batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(upsertProgressQuery, userID, rec.VideoID, rec.PlaylistID, rec.Completed, rec.UpdatedAt.UTC())
	}
	br := tx.SendBatch(ctx, batch)
	for range recs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert progress batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close progress batch: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *ProgressRepo) Stats(ctx context.Context, userID string) (models.UserStats, error) {
	var s models.UserStats
	query := `SELECT
		(SELECT COUNT(*) FROM user_progress WHERE user_id = $1),
		(SELECT COUNT(*) FROM user_progress WHERE user_id = $1 AND completed),
		(SELECT COUNT(*) FROM user_playlists WHERE user_id = $1)`

	if err := r.pool.QueryRow(ctx, query, userID).Scan(&s.TotalVideos, &s.CompletedVideos, &s.Playlists); err != nil {
		return models.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return s, nil
}
