package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

// PlaylistCacheRepo caches fetched playlist metadata shared by all users.
type PlaylistCacheRepo struct {
	pool *pgxpool.Pool
}

func NewPlaylistCacheRepo(pool *pgxpool.Pool) *PlaylistCacheRepo {
	return &PlaylistCacheRepo{pool: pool}
}

func (r *PlaylistCacheRepo) Get(ctx context.Context, key services.CacheKey) (models.PlaylistDetails, bool, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, "SELECT payload FROM cached_playlists WHERE playlist_id = $1", key.PlaylistID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PlaylistDetails{}, false, nil
	}
	if err != nil {
		return models.PlaylistDetails{}, false, fmt.Errorf("get cached playlist: %w", err)
	}

	var d models.PlaylistDetails
	if err := json.Unmarshal(payload, &d); err != nil {
		return models.PlaylistDetails{}, false, fmt.Errorf("decode cached playlist: %w", err)
	}
	return d, true, nil
}

func (r *PlaylistCacheRepo) Put(ctx context.Context, key services.CacheKey, d models.PlaylistDetails) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode cached playlist: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO cached_playlists (playlist_id, payload, cached_at) VALUES ($1, $2, NOW())
		ON CONFLICT (playlist_id) DO UPDATE SET payload = EXCLUDED.payload, cached_at = EXCLUDED.cached_at`,
		key.PlaylistID, payload)
	if err != nil {
		return fmt.Errorf("put cached playlist: %w", err)
	}
	return nil
}

// CachedAt reports when the playlist was last fetched, or nil if it never was.
func (r *PlaylistCacheRepo) CachedAt(ctx context.Context, playlistID string) (*time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, "SELECT cached_at FROM cached_playlists WHERE playlist_id = $1", playlistID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache info: %w", err)
	}
	return &at, nil
}
