package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		stmts := []string{
			`CREATE INDEX IF NOT EXISTS ix_playlists_last_accessed_at ON playlists(last_accessed_at)`,
			`CREATE INDEX IF NOT EXISTS ix_videos_playlist_id ON videos(playlist_id)`,
			`CREATE INDEX IF NOT EXISTS ix_progress_playlist_id ON progress(playlist_id)`,
			`CREATE INDEX IF NOT EXISTS ix_notes_playlist_id ON notes(playlist_id)`,
			`CREATE INDEX IF NOT EXISTS ix_notes_created_at ON notes(created_at)`,
		}
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, ix := range []string{"ix_playlists_last_accessed_at", "ix_videos_playlist_id", "ix_progress_playlist_id", "ix_notes_playlist_id", "ix_notes_created_at"} {
			if _, err := db.Exec("DROP INDEX IF EXISTS " + ix); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
