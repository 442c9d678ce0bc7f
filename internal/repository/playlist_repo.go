package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tubetrack-backend/internal/models"
)

// PlaylistRepo stores which playlists a user has added.
type PlaylistRepo struct {
	pool *pgxpool.Pool
}

func NewPlaylistRepo(pool *pgxpool.Pool) *PlaylistRepo {
	return &PlaylistRepo{pool: pool}
}

func (r *PlaylistRepo) ListByUser(ctx context.Context, userID string) ([]models.Playlist, error) {
	query := `SELECT playlist_id, title, thumbnail_url, video_count, last_accessed_at
		FROM user_playlists WHERE user_id = $1
		ORDER BY last_accessed_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user playlists: %w", err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.Title, &p.ThumbnailURL, &p.VideoCount, &p.LastAccessedAt); err != nil {
			return nil, fmt.Errorf("scan user playlist: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save records ownership. An existing row keeps its created_at.
func (r *PlaylistRepo) Save(ctx context.Context, userID string, p models.Playlist) error {
	accessed := p.LastAccessedAt
	if accessed.IsZero() {
		accessed = time.Now()
	}
	query := `INSERT INTO user_playlists (user_id, playlist_id, title, thumbnail_url, video_count, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, playlist_id) DO UPDATE SET
			title = EXCLUDED.title,
			thumbnail_url = EXCLUDED.thumbnail_url,
			video_count = EXCLUDED.video_count,
			last_accessed_at = EXCLUDED.last_accessed_at`

	_, err := r.pool.Exec(ctx, query, userID, p.ID, p.Title, p.ThumbnailURL, p.VideoCount, accessed.UTC())
	if err != nil {
		return fmt.Errorf("save user playlist: %w", err)
	}
	return nil
}

func (r *PlaylistRepo) Touch(ctx context.Context, userID, playlistID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE user_playlists SET last_accessed_at = $3 WHERE user_id = $1 AND playlist_id = $2",
		userID, playlistID, at.UTC())
	if err != nil {
		return fmt.Errorf("touch user playlist: %w", err)
	}
	return nil
}

// deleteForUserStmts cover only per-user rows. Cached notes are shared by every
// user of the playlist and outlive any one user's delete.
var deleteForUserStmts = []string{
	"DELETE FROM user_playlists WHERE user_id = $1 AND playlist_id = $2",
	"DELETE FROM user_progress WHERE user_id = $1 AND playlist_id = $2",
	"DELETE FROM video_tests WHERE user_id = $1 AND playlist_id = $2",
}

// DeleteForUser removes the user's ownership row, progress and tests for the
// playlist in one transaction.
func (r *PlaylistRepo) DeleteForUser(ctx context.Context, userID, playlistID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range deleteForUserStmts {
		if _, err := tx.Exec(ctx, stmt, userID, playlistID); err != nil {
			return fmt.Errorf("delete playlist data: %w", err)
		}
	}
	return tx.Commit(ctx)
}
