package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrack-backend/internal/models"
)

func makeVideos(n int) []models.Video {
	videos := make([]models.Video, n)
	for i := range videos {
		// reverse order so Segment has to sort
		videos[i] = models.Video{ID: fmt.Sprintf("v%03d", n-i), PlaylistID: "PL", Position: n - i - 1}
	}
	return videos
}

func TestPartCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1}, {1, 1}, {20, 1}, {21, 2}, {60, 2}, {61, 3}, {120, 3}, {121, 4}, {500, 4},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PartCount(tc.n), "n=%d", tc.n)
	}
}

func TestSegment_Sizes(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{15, []int{15}},
		{21, []int{11, 10}},
		{45, []int{23, 22}},
		{61, []int{21, 21, 19}},
		{121, []int{31, 31, 31, 28}},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("n=%d", tc.n), func(t *testing.T) {
			got := SegmentSizes(Segment(makeVideos(tc.n)))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSegment_CoversEveryVideoInOrder(t *testing.T) {
	for n := 1; n <= 300; n++ {
		segments := Segment(makeVideos(n))
		require.Len(t, segments, PartCount(n), "n=%d", n)

		perPart := (n + len(segments) - 1) / len(segments)
		total := 0
		prev := -1
		for i, seg := range segments {
			if i < len(segments)-1 {
				assert.Len(t, seg, perPart, "n=%d part=%d", n, i)
			} else {
				assert.LessOrEqual(t, len(seg), perPart, "n=%d last part", n)
				assert.NotEmpty(t, seg, "n=%d last part", n)
			}
			for _, v := range seg {
				require.Greater(t, v.Position, prev, "n=%d", n)
				prev = v.Position
			}
			total += len(seg)
		}
		assert.Equal(t, n, total, "n=%d", n)
	}
}

func TestSegment_Empty(t *testing.T) {
	assert.Empty(t, Segment(nil))
}

func TestSelectSegment_ResetsOutOfRange(t *testing.T) {
	segments := Segment(makeVideos(45))
	require.Len(t, segments, 2)

	assert.Equal(t, 1, SelectSegment(segments, 1))
	assert.Equal(t, 0, SelectSegment(segments, 2))
	assert.Equal(t, 0, SelectSegment(segments, 9))
	assert.Equal(t, 0, SelectSegment(segments, -1))

	// The list shrinking below the selected part also resets.
	assert.Equal(t, 0, SelectSegment(Segment(makeVideos(10)), 1))
}
