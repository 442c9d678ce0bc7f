package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE playlists (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				thumbnail_url TEXT NOT NULL DEFAULT '',
				video_count INTEGER NOT NULL DEFAULT 0,
				last_accessed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE videos (
				id TEXT NOT NULL,
				playlist_id TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				thumbnail_url TEXT NOT NULL DEFAULT '',
				channel_title TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (id, playlist_id)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE progress (
				video_id TEXT NOT NULL,
				playlist_id TEXT NOT NULL,
				completed BOOLEAN NOT NULL DEFAULT FALSE,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (video_id, playlist_id)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE notes (
				video_id TEXT NOT NULL,
				playlist_id TEXT NOT NULL,
				topic TEXT NOT NULL DEFAULT '',
				source TEXT NOT NULL DEFAULT '',
				key_takeaways TEXT,
				concepts TEXT,
				must_remember TEXT,
				formula_or_logic TEXT,
				summary TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (video_id, playlist_id)
			)
		`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"notes", "progress", "videos", "playlists"} {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
