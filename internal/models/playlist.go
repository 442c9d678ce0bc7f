package models

import (
	"sort"
	"time"
)

type Playlist struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ThumbnailURL   string    `json:"thumbnail_url"`
	VideoCount     int       `json:"video_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

type Video struct {
	ID           string `json:"id"`
	PlaylistID   string `json:"playlist_id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	ChannelTitle string `json:"channel_title"`
	Position     int    `json:"position"`
}

// PlaylistDetails is what the video platform returns for one playlist.
type PlaylistDetails struct {
	Playlist Playlist `json:"playlist"`
	Videos   []Video  `json:"videos"`
}

// SortVideos returns a copy of videos ordered by ascending position.
func SortVideos(videos []Video) []Video {
	out := make([]Video, len(videos))
	copy(out, videos)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// SortPlaylists orders playlists most recently accessed first.
func SortPlaylists(playlists []Playlist) {
	sort.SliceStable(playlists, func(i, j int) bool {
		return playlists[i].LastAccessedAt.After(playlists[j].LastAccessedAt)
	})
}

type UserStats struct {
	TotalVideos     int `json:"total_videos"`
	CompletedVideos int `json:"completed_videos"`
	Playlists       int `json:"playlists"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
