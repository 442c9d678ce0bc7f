package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrack-backend/internal/database"
	"tubetrack-backend/internal/localstore/migrations"
	"tubetrack-backend/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.NewLocalDB(":memory:", time.Second)
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return New(db)
}

func sampleDetails(id string, n int) models.PlaylistDetails {
	videos := make([]models.Video, n)
	for i := range videos {
		videos[i] = models.Video{
			ID:           id + "-v" + string(rune('a'+i)),
			PlaylistID:   id,
			Title:        "Lecture " + string(rune('A'+i)),
			ChannelTitle: "Channel",
			Position:     i,
		}
	}
	return models.PlaylistDetails{
		Playlist: models.Playlist{ID: id, Title: "Playlist " + id, Description: "desc", VideoCount: n},
		Videos:   videos,
	}
}

func TestStore_UpsertPlaylistAndList(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, s.UpsertPlaylist(ctx, sampleDetails("PL-old", 2), older))
	require.NoError(t, s.UpsertPlaylist(ctx, sampleDetails("PL-new", 3), newer))

	playlists, err := s.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, "PL-new", playlists[0].ID)
	assert.Equal(t, "PL-old", playlists[1].ID)
	assert.True(t, playlists[0].LastAccessedAt.Equal(newer))

	videos, err := s.ListVideos(ctx, "PL-new")
	require.NoError(t, err)
	require.Len(t, videos, 3)
	for i, v := range videos {
		assert.Equal(t, i, v.Position)
		assert.Equal(t, "PL-new", v.PlaylistID)
	}
}

func TestStore_UpsertPlaylistReplacesVideosWholesale(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.UpsertPlaylist(ctx, sampleDetails("PL1", 4), now))

	refreshed := sampleDetails("PL1", 2)
	refreshed.Playlist.Title = "Renamed"
	refreshed.Playlist.Description = "should not overwrite"
	require.NoError(t, s.UpsertPlaylist(ctx, refreshed, now.Add(time.Minute)))

	videos, err := s.ListVideos(ctx, "PL1")
	require.NoError(t, err)
	assert.Len(t, videos, 2)

	p, ok, err := s.GetPlaylist(ctx, "PL1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Renamed", p.Title)
	assert.Equal(t, "desc", p.Description)
	assert.Equal(t, 2, p.VideoCount)
}

func TestStore_InsertPlaylistIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	inserted, err := s.InsertPlaylistIfAbsent(ctx, models.Playlist{ID: "PL1", Title: "first", LastAccessedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertPlaylistIfAbsent(ctx, models.Playlist{ID: "PL1", Title: "second", LastAccessedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)

	p, _, err := s.GetPlaylist(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "first", p.Title)
}

func TestStore_ProgressUpsertKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	t0 := time.Now().UTC()

	require.NoError(t, s.PutProgress(ctx, models.ProgressRecord{VideoID: "v1", PlaylistID: "PL1", Completed: true, UpdatedAt: t0}))
	require.NoError(t, s.PutProgress(ctx, models.ProgressRecord{VideoID: "v1", PlaylistID: "PL1", Completed: false, UpdatedAt: t0.Add(time.Second)}))

	rows, err := s.ListProgress(ctx, "PL1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Completed)
}

func TestStore_DeleteProgressSkipsRewrittenRows(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutProgress(ctx, models.ProgressRecord{VideoID: "v1", PlaylistID: "PL1", Completed: true, UpdatedAt: t0}))
	require.NoError(t, s.PutProgress(ctx, models.ProgressRecord{VideoID: "v2", PlaylistID: "PL1", Completed: true, UpdatedAt: t0}))

	migrated, err := s.ListProgress(ctx, "PL1")
	require.NoError(t, err)

	// v2 is toggled again between the remote write and the local delete.
	require.NoError(t, s.PutProgress(ctx, models.ProgressRecord{VideoID: "v2", PlaylistID: "PL1", Completed: false, UpdatedAt: t0.Add(time.Minute)}))

	require.NoError(t, s.DeleteProgress(ctx, migrated))

	left, err := s.ListProgress(ctx, "PL1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "v2", left[0].VideoID)
	assert.False(t, left[0].Completed)
}

func TestStore_NotesReplaceWholeRecord(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutNotes(ctx, models.NotesRecord{
		VideoID:        "v1",
		PlaylistID:     "PL1",
		Topic:          "Sorting",
		KeyTakeaways:   []string{"a", "b"},
		Concepts:       []models.Concept{{Term: "pivot", Meaning: "split point"}},
		FormulaOrLogic: &models.FormulaOrLogic{Formula: "O(n log n)"},
		CreatedAt:      t0,
	}))
	require.NoError(t, s.PutNotes(ctx, models.NotesRecord{
		VideoID:      "v1",
		PlaylistID:   "PL1",
		Topic:        "Sorting v2",
		KeyTakeaways: []string{"c"},
		CreatedAt:    t0.Add(time.Hour),
	}))

	notes, err := s.ListNotes(ctx, "PL1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, "Sorting v2", n.Topic)
	assert.Equal(t, []string{"c"}, n.KeyTakeaways)
	assert.Empty(t, n.Concepts)
	assert.Nil(t, n.FormulaOrLogic)
	assert.True(t, n.CreatedAt.Equal(t0.Add(time.Hour)))
}

func TestStore_DeletePlaylistCascades(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.UpsertPlaylist(ctx, sampleDetails("PL1", 3), now))
	require.NoError(t, s.UpsertPlaylist(ctx, sampleDetails("PL2", 1), now))
	require.NoError(t, s.PutProgress(ctx, models.ProgressRecord{VideoID: "PL1-va", PlaylistID: "PL1", Completed: true, UpdatedAt: now}))
	require.NoError(t, s.PutNotes(ctx, models.NotesRecord{VideoID: "PL1-va", PlaylistID: "PL1", Topic: "t", CreatedAt: now}))

	require.NoError(t, s.DeletePlaylist(ctx, "PL1"))

	ok, err := s.HasPlaylist(ctx, "PL1")
	require.NoError(t, err)
	assert.False(t, ok)

	videos, err := s.ListVideos(ctx, "PL1")
	require.NoError(t, err)
	assert.Empty(t, videos)
	progress, err := s.ListProgress(ctx, "PL1")
	require.NoError(t, err)
	assert.Empty(t, progress)
	notes, err := s.ListNotes(ctx, "PL1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	ok, err = s.HasPlaylist(ctx, "PL2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_GetVideo(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.UpsertPlaylist(ctx, sampleDetails("PL1", 2), time.Now()))

	v, ok, err := s.GetVideo(ctx, "PL1", "PL1-vb")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v.Position)

	_, ok, err = s.GetVideo(ctx, "PL1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrations_SchemaVersion(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	version, err := migrations.SchemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "20261018090100", version)

	// Re-running is a no-op and keeps existing rows.
	require.NoError(t, s.PutProgress(ctx, models.ProgressRecord{VideoID: "v1", PlaylistID: "PL1", Completed: true, UpdatedAt: time.Now()}))
	_, err = migrations.BringUpToDate(ctx, s.db)
	require.NoError(t, err)
	rows, err := s.ListProgress(ctx, "PL1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
