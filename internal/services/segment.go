package services

import "tubetrack-backend/internal/models"

// PartCount returns how many display parts a list of n videos is split into.
func PartCount(n int) int {
	switch {
	case n <= 20:
		return 1
	case n <= 60:
		return 2
	case n <= 120:
		return 3
	default:
		return 4
	}
}

// Segment sorts videos by position and splits them into PartCount contiguous parts
// of ceil(n/parts) items; the last part may be shorter.
func Segment(videos []models.Video) [][]models.Video {
	sorted := models.SortVideos(videos)
	n := len(sorted)
	if n == 0 {
		return [][]models.Video{}
	}

	parts := PartCount(n)
	perPart := (n + parts - 1) / parts

	segments := make([][]models.Video, 0, parts)
	for i := 0; i < parts; i++ {
		start := i * perPart
		if start >= n {
			break
		}
		end := min(start+perPart, n)
		segments = append(segments, sorted[start:end])
	}
	return segments
}

// SelectSegment returns the index to display. Anything outside the current
// segments resets to the first one.
func SelectSegment(segments [][]models.Video, index int) int {
	if index < 0 || index >= len(segments) {
		return 0
	}
	return index
}

// SegmentSizes reports the length of each segment.
func SegmentSizes(segments [][]models.Video) []int {
	sizes := make([]int, len(segments))
	for i, s := range segments {
		sizes[i] = len(s)
	}
	return sizes
}
