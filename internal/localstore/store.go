// Package localstore is the on-device cache: playlists, videos, progress and
// notes in SQLite. Nothing here is authoritative once a user is signed in.
package localstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"tubetrack-backend/internal/models"
)

type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// ListPlaylists returns every playlist, most recently accessed first.
func (s *Store) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var rows []playlistRow
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("p.last_accessed_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out := make([]models.Playlist, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) GetPlaylist(ctx context.Context, id string) (models.Playlist, bool, error) {
	row := new(playlistRow)
	err := s.db.NewSelect().Model(row).Where("p.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Playlist{}, false, nil
	}
	if err != nil {
		return models.Playlist{}, false, errors.WithStack(err)
	}
	return row.model(), true, nil
}

func (s *Store) HasPlaylist(ctx context.Context, id string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*playlistRow)(nil)).Where("p.id = ?", id).Exists(ctx)
	return exists, errors.WithStack(err)
}

// InsertPlaylistIfAbsent adds p unless a row with the same id exists. It
// reports whether a row was inserted.
func (s *Store) InsertPlaylistIfAbsent(ctx context.Context, p models.Playlist) (bool, error) {
	res, err := s.db.NewInsert().
		Model(toPlaylistRow(p)).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n > 0, nil
}

func (s *Store) SetLastAccessed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*playlistRow)(nil)).
		Set("last_accessed_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

// UpsertPlaylist writes the playlist row and replaces its videos in one
// transaction. An existing row keeps its description; title, thumbnail,
// video count and access time are overwritten.
func (s *Store) UpsertPlaylist(ctx context.Context, details models.PlaylistDetails, accessedAt time.Time) error {
	p := details.Playlist
	p.LastAccessedAt = accessedAt

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(toPlaylistRow(p)).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("thumbnail_url = EXCLUDED.thumbnail_url").
			Set("video_count = EXCLUDED.video_count").
			Set("last_accessed_at = EXCLUDED.last_accessed_at").
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "upsert playlist")
		}

		_, err = tx.NewDelete().Model((*videoRow)(nil)).Where("playlist_id = ?", p.ID).Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "clear videos")
		}
		if len(details.Videos) == 0 {
			return nil
		}

		rows := make([]videoRow, len(details.Videos))
		for i, v := range details.Videos {
			rows[i] = videoRow{
				ID:           v.ID,
				PlaylistID:   p.ID,
				Title:        v.Title,
				ThumbnailURL: v.ThumbnailURL,
				ChannelTitle: v.ChannelTitle,
				Position:     v.Position,
			}
		}
		_, err = tx.NewInsert().Model(&rows).On("CONFLICT (id, playlist_id) DO NOTHING").Exec(ctx)
		return errors.Wrap(err, "insert videos")
	})
}

// ListVideos returns the playlist's videos in position order.
func (s *Store) ListVideos(ctx context.Context, playlistID string) ([]models.Video, error) {
	var rows []videoRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("v.playlist_id = ?", playlistID).
		OrderExpr("v.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out := make([]models.Video, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) GetVideo(ctx context.Context, playlistID, videoID string) (models.Video, bool, error) {
	row := new(videoRow)
	err := s.db.NewSelect().
		Model(row).
		Where("v.playlist_id = ?", playlistID).
		Where("v.id = ?", videoID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Video{}, false, nil
	}
	if err != nil {
		return models.Video{}, false, errors.WithStack(err)
	}
	return row.model(), true, nil
}

func (s *Store) ListProgress(ctx context.Context, playlistID string) ([]models.ProgressRecord, error) {
	var rows []progressRow
	err := s.db.NewSelect().Model(&rows).Where("pr.playlist_id = ?", playlistID).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out := make([]models.ProgressRecord, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) GetProgress(ctx context.Context, playlistID, videoID string) (models.ProgressRecord, bool, error) {
	row := new(progressRow)
	err := s.db.NewSelect().
		Model(row).
		Where("pr.playlist_id = ?", playlistID).
		Where("pr.video_id = ?", videoID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProgressRecord{}, false, nil
	}
	if err != nil {
		return models.ProgressRecord{}, false, errors.WithStack(err)
	}
	return row.model(), true, nil
}

// PutProgress upserts the local shadow row for (video, playlist).
func (s *Store) PutProgress(ctx context.Context, rec models.ProgressRecord) error {
	row := &progressRow{
		VideoID:    rec.VideoID,
		PlaylistID: rec.PlaylistID,
		Completed:  rec.Completed,
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (video_id, playlist_id) DO UPDATE").
		Set("completed = EXCLUDED.completed").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

// DeleteProgress removes the given rows. A row rewritten after migrated was
// read (newer updated_at) is left in place for the next migration.
func (s *Store) DeleteProgress(ctx context.Context, migrated []models.ProgressRecord) error {
	if len(migrated) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, rec := range migrated {
			_, err := tx.NewDelete().
				Model((*progressRow)(nil)).
				Where("video_id = ?", rec.VideoID).
				Where("playlist_id = ?", rec.PlaylistID).
				Where("updated_at <= ?", rec.UpdatedAt.UTC()).
				Exec(ctx)
			if err != nil {
				return errors.Wrap(err, "delete progress")
			}
		}
		return nil
	})
}

func (s *Store) ListNotes(ctx context.Context, playlistID string) ([]models.NotesRecord, error) {
	var rows []notesRow
	err := s.db.NewSelect().Model(&rows).Where("n.playlist_id = ?", playlistID).Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out := make([]models.NotesRecord, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// PutNotes replaces the whole notes record for (video, playlist).
func (s *Store) PutNotes(ctx context.Context, n models.NotesRecord) error {
	_, err := s.db.NewInsert().
		Model(toNotesRow(n)).
		On("CONFLICT (video_id, playlist_id) DO UPDATE").
		Set("topic = EXCLUDED.topic").
		Set("source = EXCLUDED.source").
		Set("key_takeaways = EXCLUDED.key_takeaways").
		Set("concepts = EXCLUDED.concepts").
		Set("must_remember = EXCLUDED.must_remember").
		Set("formula_or_logic = EXCLUDED.formula_or_logic").
		Set("summary = EXCLUDED.summary").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	return errors.WithStack(err)
}

// DeletePlaylist removes the playlist and everything hanging off it, all or nothing.
func (s *Store) DeletePlaylist(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*playlistRow)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return errors.Wrap(err, "delete playlist")
		}
		if _, err := tx.NewDelete().Model((*videoRow)(nil)).Where("playlist_id = ?", id).Exec(ctx); err != nil {
			return errors.Wrap(err, "delete videos")
		}
		if _, err := tx.NewDelete().Model((*progressRow)(nil)).Where("playlist_id = ?", id).Exec(ctx); err != nil {
			return errors.Wrap(err, "delete progress")
		}
		if _, err := tx.NewDelete().Model((*notesRow)(nil)).Where("playlist_id = ?", id).Exec(ctx); err != nil {
			return errors.Wrap(err, "delete notes")
		}
		return nil
	})
}
