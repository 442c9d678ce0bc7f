package models

import "time"

// ProgressRecord is keyed by (UserID, VideoID, PlaylistID). UserID is empty for
// the pre-authentication local shadow copy.
type ProgressRecord struct {
	UserID     string    `json:"user_id,omitempty"`
	VideoID    string    `json:"video_id"`
	PlaylistID string    `json:"playlist_id"`
	Completed  bool      `json:"completed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProgressMap indexes progress by video id.
type ProgressMap map[string]ProgressRecord

func NewProgressMap(records []ProgressRecord) ProgressMap {
	m := make(ProgressMap, len(records))
	for _, rec := range records {
		m.Merge(rec)
	}
	return m
}

// Merge keeps whichever record for the video was written last.
func (m ProgressMap) Merge(rec ProgressRecord) {
	cur, ok := m[rec.VideoID]
	if ok && cur.UpdatedAt.After(rec.UpdatedAt) {
		return
	}
	m[rec.VideoID] = rec
}

func (m ProgressMap) CompletedCount() int {
	n := 0
	for _, rec := range m {
		if rec.Completed {
			n++
		}
	}
	return n
}
