package models

import "time"

type Concept struct {
	Term    string `json:"term"`
	Meaning string `json:"meaning"`
}

type FormulaOrLogic struct {
	Formula   string `json:"formula,omitempty"`
	Structure string `json:"structure,omitempty"`
	Condition string `json:"condition,omitempty"`
	WhenToUse string `json:"when_to_use,omitempty"`
}

// NotesRecord is replaced as a whole on regeneration.
type NotesRecord struct {
	VideoID        string          `json:"video_id"`
	PlaylistID     string          `json:"playlist_id"`
	UserID         string          `json:"user_id,omitempty"`
	Topic          string          `json:"topic"`
	Source         string          `json:"source"`
	KeyTakeaways   []string        `json:"key_takeaways"`
	Concepts       []Concept       `json:"concepts"`
	MustRemember   []string        `json:"must_remember"`
	FormulaOrLogic *FormulaOrLogic `json:"formula_or_logic,omitempty"`
	Summary        string          `json:"summary"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MergeNotes overlays remote notes on local ones; remote wins for a shared video id.
func MergeNotes(local, remote []NotesRecord) map[string]NotesRecord {
	out := make(map[string]NotesRecord, len(local)+len(remote))
	for _, n := range local {
		out[n.VideoID] = n
	}
	for _, n := range remote {
		out[n.VideoID] = n
	}
	return out
}
