package localstore

import (
	"time"

	"github.com/uptrace/bun"

	"tubetrack-backend/internal/models"
)

type playlistRow struct {
	bun.BaseModel `bun:"table:playlists,alias:p"`

	ID             string    `bun:"id,pk"`
	Title          string    `bun:"title,notnull"`
	Description    string    `bun:"description,notnull"`
	ThumbnailURL   string    `bun:"thumbnail_url,notnull"`
	VideoCount     int       `bun:"video_count,notnull"`
	LastAccessedAt time.Time `bun:"last_accessed_at,notnull"`
}

type videoRow struct {
	bun.BaseModel `bun:"table:videos,alias:v"`

	ID           string `bun:"id,pk"`
	PlaylistID   string `bun:"playlist_id,pk"`
	Title        string `bun:"title,notnull"`
	ThumbnailURL string `bun:"thumbnail_url,notnull"`
	ChannelTitle string `bun:"channel_title,notnull"`
	Position     int    `bun:"position,notnull"`
}

type progressRow struct {
	bun.BaseModel `bun:"table:progress,alias:pr"`

	VideoID    string    `bun:"video_id,pk"`
	PlaylistID string    `bun:"playlist_id,pk"`
	Completed  bool      `bun:"completed,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

type notesRow struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	VideoID        string                 `bun:"video_id,pk"`
	PlaylistID     string                 `bun:"playlist_id,pk"`
	Topic          string                 `bun:"topic,notnull"`
	Source         string                 `bun:"source,notnull"`
	KeyTakeaways   []string               `bun:"key_takeaways"`
	Concepts       []models.Concept       `bun:"concepts"`
	MustRemember   []string               `bun:"must_remember"`
	FormulaOrLogic *models.FormulaOrLogic `bun:"formula_or_logic"`
	Summary        string                 `bun:"summary,notnull"`
	CreatedAt      time.Time              `bun:"created_at,notnull"`
}

func toPlaylistRow(p models.Playlist) *playlistRow {
	return &playlistRow{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		ThumbnailURL:   p.ThumbnailURL,
		VideoCount:     p.VideoCount,
		LastAccessedAt: p.LastAccessedAt.UTC(),
	}
}

func (r playlistRow) model() models.Playlist {
	return models.Playlist{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		ThumbnailURL:   r.ThumbnailURL,
		VideoCount:     r.VideoCount,
		LastAccessedAt: r.LastAccessedAt,
	}
}

func (r videoRow) model() models.Video {
	return models.Video{
		ID:           r.ID,
		PlaylistID:   r.PlaylistID,
		Title:        r.Title,
		ThumbnailURL: r.ThumbnailURL,
		ChannelTitle: r.ChannelTitle,
		Position:     r.Position,
	}
}

func (r progressRow) model() models.ProgressRecord {
	return models.ProgressRecord{
		VideoID:    r.VideoID,
		PlaylistID: r.PlaylistID,
		Completed:  r.Completed,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toNotesRow(n models.NotesRecord) *notesRow {
	return &notesRow{
		VideoID:        n.VideoID,
		PlaylistID:     n.PlaylistID,
		Topic:          n.Topic,
		Source:         n.Source,
		KeyTakeaways:   n.KeyTakeaways,
		Concepts:       n.Concepts,
		MustRemember:   n.MustRemember,
		FormulaOrLogic: n.FormulaOrLogic,
		Summary:        n.Summary,
		CreatedAt:      n.CreatedAt.UTC(),
	}
}

func (r notesRow) model() models.NotesRecord {
	return models.NotesRecord{
		VideoID:        r.VideoID,
		PlaylistID:     r.PlaylistID,
		Topic:          r.Topic,
		Source:         r.Source,
		KeyTakeaways:   r.KeyTakeaways,
		Concepts:       r.Concepts,
		MustRemember:   r.MustRemember,
		FormulaOrLogic: r.FormulaOrLogic,
		Summary:        r.Summary,
		CreatedAt:      r.CreatedAt,
	}
}
