package models

import "time"

// WebSocket message types
const (
	EventRefreshCompleted = "refresh_completed"
	EventRefreshFailed    = "refresh_failed"
	EventCreditsChanged   = "credits_changed"
	EventCleanupCompleted = "remote_cleanup_completed"
	EventCleanupFailed    = "remote_cleanup_failed"
	EventSessionChanged   = "session_changed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	PlaylistID string    `json:"playlist_id"`
	Playlist   *Playlist `json:"playlist,omitempty"`
	VideoCount int       `json:"video_count"`
	Error      string    `json:"error,omitempty"`
}

type CreditsEvent struct {
	Credits int    `json:"credits"`
	Action  string `json:"action"`
}

type CleanupEvent struct {
	JobID      string `json:"job_id"`
	PlaylistID string `json:"playlist_id"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
}

// TaskStatus is the observable state of a detached background task.
type TaskStatus struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	PlaylistID string     `json:"playlist_id"`
	State      string     `json:"state"` // "running" | "succeeded" | "failed"
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
