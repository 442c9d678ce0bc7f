package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"tubetrack-backend/internal/models"
)

const (
	playlistPageSize = 50
	maxPlaylistPages = 10
)

var errPlaylistNotFound = &NotFoundError{Message: "Playlist not found or is private."}

// YouTubeFetcher loads playlist metadata and items from the YouTube Data API.
type YouTubeFetcher struct {
	svc *youtube.Service
	log *zap.Logger
}

// NewYouTubeFetcher builds a fetcher. An empty baseURL uses the public API.
func NewYouTubeFetcher(ctx context.Context, apiKey, baseURL string, log *zap.Logger) (*YouTubeFetcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithEndpoint(baseURL))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}
	return &YouTubeFetcher{svc: svc, log: log}, nil
}

// FetchPlaylist returns the playlist and its playable videos in order.
// Private and deleted entries are dropped and positions are renumbered densely.
func (f *YouTubeFetcher) FetchPlaylist(ctx context.Context, playlistID string) (models.PlaylistDetails, error) {
	if playlistID == "" {
		return models.PlaylistDetails{}, &ValidationError{Fields: map[string]string{"playlist_id": "required"}}
	}

	resp, err := f.svc.Playlists.List([]string{"snippet", "contentDetails"}).Id(playlistID).Context(ctx).Do()
	if err != nil {
		return models.PlaylistDetails{}, classifyYouTubeError("youtube.playlists", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return models.PlaylistDetails{}, errPlaylistNotFound
	}

	snippet := resp.Items[0].Snippet
	playlist := models.Playlist{
		ID:           playlistID,
		Title:        snippet.Title,
		Description:  snippet.Description,
		ThumbnailURL: pickThumbnail(snippet.Thumbnails, true),
	}

	var videos []models.Video
	pageToken := ""
	for page := 0; page < maxPlaylistPages; page++ {
		call := f.svc.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(playlistID).
			MaxResults(playlistPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		items, err := call.Do()
		if err != nil {
			return models.PlaylistDetails{}, classifyYouTubeError("youtube.playlistItems", err)
		}

		for _, item := range items.Items {
			s := item.Snippet
			if s == nil || s.ResourceId == nil || s.ResourceId.VideoId == "" {
				continue
			}
			if s.Title == "Private video" || s.Title == "Deleted video" {
				continue
			}
			channel := s.VideoOwnerChannelTitle
			if channel == "" {
				channel = s.ChannelTitle
			}
			videos = append(videos, models.Video{
				ID:           s.ResourceId.VideoId,
				PlaylistID:   playlistID,
				Title:        s.Title,
				ThumbnailURL: pickThumbnail(s.Thumbnails, false),
				ChannelTitle: channel,
				Position:     len(videos),
			})
		}

		pageToken = items.NextPageToken
		if pageToken == "" {
			break
		}
	}

	playlist.VideoCount = len(videos)
	f.log.Debug("fetched playlist",
		zap.String("playlist_id", playlistID),
		zap.Int("videos", len(videos)),
	)
	return models.PlaylistDetails{Playlist: playlist, Videos: videos}, nil
}

func pickThumbnail(t *youtube.ThumbnailDetails, large bool) string {
	if t == nil {
		return ""
	}
	var order []*youtube.Thumbnail
	if large {
		order = []*youtube.Thumbnail{t.High, t.Medium}
	} else {
		order = []*youtube.Thumbnail{t.Medium, t.Default}
	}
	for _, th := range order {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func classifyYouTubeError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return errPlaylistNotFound
		case gerr.Code == http.StatusBadRequest:
			return &ValidationError{Fields: map[string]string{"playlist_id": gerr.Message}}
		case gerr.Code == http.StatusTooManyRequests, gerr.Code == http.StatusForbidden && quotaExceeded(gerr):
			return &RateLimitError{Message: "YouTube quota exceeded, try again later"}
		}
	}
	return &TransientNetworkError{Op: op, Err: err}
}

func quotaExceeded(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" {
			return true
		}
	}
	return false
}

// VideoContentSource finds text to generate study material from: the
// transcript, then the description, then nothing (title-only generation).
type VideoContentSource struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
	watchURL      string
	log           *zap.Logger
}

const (
	maxTranscriptChars    = 30000
	minDescriptionChars   = 100
	defaultWatchURLPrefix = "https://www.youtube.com/watch?v="
)

type timedTextXML struct {
	XMLName xml.Name  `xml:"transcript"`
	Texts   []textXML `xml:"text"`
}

type textXML struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func NewVideoContentSource(log *zap.Logger) *VideoContentSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &VideoContentSource{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
		watchURL:      defaultWatchURLPrefix,
		log:           log,
	}
}

// VideoContent is the source text handed to the generator.
type VideoContent struct {
	Kind string // "transcript", "description" or "title"
	Text string
}

// Content never fails: when neither transcript nor description is usable it
// returns a title-only source.
// truncateUTF8 cuts s to at most limit bytes on a rune boundary and marks the cut.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (s *VideoContentSource) Content(ctx context.Context, videoID string) VideoContent {
	transcript, err := s.GetTranscript(ctx, videoID)
	if err == nil {
		return VideoContent{Kind: "transcript", Text: truncateUTF8(transcript, maxTranscriptChars)}
	}
	s.log.Debug("transcript unavailable, trying description", zap.String("video_id", videoID), zap.Error(err))

	description, err := s.GetDescription(ctx, videoID)
	if err == nil && len(description) > minDescriptionChars {
		return VideoContent{Kind: "description", Text: description}
	}
	if err != nil {
		s.log.Debug("description unavailable", zap.String("video_id", videoID), zap.Error(err))
	}
	return VideoContent{Kind: "title"}
}

// GetTranscript fetches the captions for a YouTube video as plain text.
func (s *VideoContentSource) GetTranscript(ctx context.Context, videoID string) (string, error) {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		// Fallback: request any available language
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			legacyTranscript, legacyErr := s.getTranscriptViaTimedText(ctx, videoID)
			if legacyErr == nil {
				return legacyTranscript, nil
			}
			return "", fmt.Errorf("no subtitles available via transcript API (%v) and timedtext fallback failed (%v)", err, legacyErr)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("subtitle track is empty")
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("subtitle text resolved to empty content")
	}
	return cleaned, nil
}

// GetDescription reads the video description from the watch page metadata.
func (s *VideoContentSource) GetDescription(ctx context.Context, videoID string) (string, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}
	return strings.TrimSpace(video.Description), nil
}

func (s *VideoContentSource) getTranscriptViaTimedText(ctx context.Context, videoID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.watchURL+videoID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read YouTube page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(body))
	if err != nil {
		return "", err
	}

	captionReq, err := http.NewRequestWithContext(ctx, http.MethodGet, captionURL, nil)
	if err != nil {
		return "", err
	}
	captionResp, err := s.httpClient.Do(captionReq)
	if err != nil {
		return "", fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read captions: %w", err)
	}

	transcript, err := parseCaptionsXML(captionBody)
	if err != nil {
		return "", fmt.Errorf("failed to parse captions XML: %w", err)
	}
	return transcript, nil
}

var (
	captionTracksRe   = regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	captionRendererRe = regexp.MustCompile(`"playerCaptionsTracklistRenderer"\s*:\s*\{(?:.*?,)?\s*"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	captionBaseURLRe  = regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
)

func extractCaptionURL(pageHTML string) (string, error) {
	matches := captionTracksRe.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		matches = captionRendererRe.FindStringSubmatch(pageHTML)
		if len(matches) < 2 {
			return "", fmt.Errorf("no captions available for this video")
		}
	}

	urlMatches := captionBaseURLRe.FindStringSubmatch(matches[1])
	if len(urlMatches) < 2 {
		return "", fmt.Errorf("caption track found but baseUrl missing")
	}

	u := urlMatches[1]
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")
	return u, nil
}

func parseCaptionsXML(data []byte) (string, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return "", err
	}

	var parts []string
	for _, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Text))
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("captions XML empty")
	}
	return strings.Join(parts, " "), nil
}
