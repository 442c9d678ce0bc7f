package services

import (
	"regexp"
	"strings"
)

var (
	listParamRe    = regexp.MustCompile(`[&?]list=([^&]+)`)
	playlistPathRe = regexp.MustCompile(`/playlist/([^/?#&]+)`)
	bareIDRe       = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ExtractPlaylistID pulls a playlist id out of a pasted URL or bare id.
// It returns "" when nothing usable is found.
func ExtractPlaylistID(input string) string {
	if m := listParamRe.FindStringSubmatch(input); len(m) > 1 {
		return m[1]
	}
	if m := playlistPathRe.FindStringSubmatch(input); len(m) > 1 {
		return m[1]
	}

	trimmed := strings.TrimSpace(input)
	if len(trimmed) >= 12 && bareIDRe.MatchString(trimmed) {
		return trimmed
	}
	return ""
}
