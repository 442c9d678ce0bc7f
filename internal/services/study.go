package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tubetrack-backend/internal/models"
)

// Generator is the LLM collaborator.
type Generator interface {
	GenerateNotes(ctx context.Context, ref VideoRef) (models.NotesRecord, error)
	GenerateTest(ctx context.Context, ref VideoRef) ([]models.Question, error)
}

// VideoLookup resolves a video from the local playlist copy.
type VideoLookup interface {
	GetVideo(ctx context.Context, playlistID, videoID string) (models.Video, bool, error)
}

// NotesSink keeps a device-local copy of notes for offline display.
type NotesSink interface {
	PutNotes(ctx context.Context, n models.NotesRecord) error
}

type TestResultStore interface {
	SaveResult(ctx context.Context, key CacheKey, score int, answers []int, level string) error
	ListGraded(ctx context.Context, userID, playlistID string) ([]models.TestResult, error)
}

type StatsSource interface {
	Stats(ctx context.Context, userID string) (models.UserStats, error)
}

// TestView is a stored test with its result once graded.
type TestView struct {
	Test   models.TestRecord  `json:"test"`
	Result *models.TestResult `json:"result"`
}

type StudyDeps struct {
	Notes   *GenerationCache[models.NotesRecord]
	Tests   *GenerationCache[models.TestRecord]
	Results TestResultStore
	Stats   StatsSource
	Ledger  *CreditLedger
	Gen     Generator
	Videos  VideoLookup
	Local   NotesSink
	Log     *zap.Logger
}

// StudyService runs the metered notes and test flows.
type StudyService struct {
	notes   *GenerationCache[models.NotesRecord]
	tests   *GenerationCache[models.TestRecord]
	results TestResultStore
	stats   StatsSource
	ledger  *CreditLedger
	gen     Generator
	videos  VideoLookup
	local   NotesSink
	log     *zap.Logger
	now     func() time.Time
}

func NewStudyService(d StudyDeps) *StudyService {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &StudyService{
		notes:   d.Notes,
		tests:   d.Tests,
		results: d.Results,
		stats:   d.Stats,
		ledger:  d.Ledger,
		gen:     d.Gen,
		videos:  d.Videos,
		local:   d.Local,
		log:     log,
		now:     time.Now,
	}
}

func (s *StudyService) resolve(ctx context.Context, playlistID, videoID string) (VideoRef, error) {
	if playlistID == "" || videoID == "" {
		return VideoRef{}, &ValidationError{Fields: map[string]string{"video_id": "required", "playlist_id": "required"}}
	}
	v, ok, err := s.videos.GetVideo(ctx, playlistID, videoID)
	if err != nil {
		return VideoRef{}, fmt.Errorf("lookup video: %w", err)
	}
	if !ok {
		return VideoRef{}, &NotFoundError{Message: "Video not found in playlist"}
	}
	return VideoRef{VideoID: v.ID, PlaylistID: playlistID, Title: v.Title, ChannelTitle: v.ChannelTitle}, nil
}

// GenerateNotes returns notes for the video. Signed-in users go through the
// shared cache and are charged; anonymous notes are generated for this
// device only.
func (s *StudyService) GenerateNotes(ctx context.Context, userID, playlistID, videoID string, force bool) (models.NotesRecord, error) {
	ref, err := s.resolve(ctx, playlistID, videoID)
	if err != nil {
		return models.NotesRecord{}, err
	}

	generate := func(ctx context.Context) (models.NotesRecord, error) {
		n, err := s.gen.GenerateNotes(ctx, ref)
		if err != nil {
			return models.NotesRecord{}, err
		}
		n.UserID = userID
		n.CreatedAt = s.now().UTC()
		return n, nil
	}

	if userID == "" {
		n, err := generate(ctx)
		if err != nil {
			return models.NotesRecord{}, err
		}
		s.keepLocal(ctx, n)
		return n, nil
	}

	key := CacheKey{VideoID: videoID, PlaylistID: playlistID}
	if !force {
		cached, hit, err := s.notes.Lookup(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("notes lookup failed, generating", zap.String("video_id", videoID), zap.Error(err))
		case hit:
			if s.ledger.ChargesOnCacheHit(ActionNotes) {
				if _, err := s.ledger.Reserve(ctx, userID, ActionNotes); err != nil {
					return models.NotesRecord{}, err
				}
			}
			s.keepLocal(ctx, cached)
			return cached, nil
		}
	}

	var out models.NotesRecord
	err = s.ledger.Run(ctx, userID, ActionNotes, func(ctx context.Context) error {
		n, _, err := s.notes.GetOrGenerate(ctx, key, true, generate)
		out = n
		return err
	})
	if err != nil {
		return models.NotesRecord{}, err
	}
	s.keepLocal(ctx, out)
	return out, nil
}

func (s *StudyService) keepLocal(ctx context.Context, n models.NotesRecord) {
	if s.local == nil {
		return
	}
	if err := s.local.PutNotes(ctx, n); err != nil {
		s.log.Warn("local notes write failed", zap.String("video_id", n.VideoID), zap.Error(err))
	}
}

// GetTest returns the user's stored test for the video without generating.
func (s *StudyService) GetTest(ctx context.Context, userID, playlistID, videoID string) (TestView, error) {
	if userID == "" {
		return TestView{}, &UnauthorizedError{Message: "Sign in to take tests"}
	}
	t, ok, err := s.tests.Lookup(ctx, CacheKey{VideoID: videoID, PlaylistID: playlistID, UserID: userID})
	if err != nil {
		return TestView{}, err
	}
	if !ok {
		return TestView{}, &NotFoundError{Message: "Test not found"}
	}
	return viewOf(t), nil
}

func viewOf(t models.TestRecord) TestView {
	v := TestView{Test: t}
	if res, ok := t.Result(); ok {
		v.Result = &res
	}
	return v
}

// GenerateTest returns the user's test for the video, generating and charging
// on a miss or when forced. A regenerated test starts ungraded.
func (s *StudyService) GenerateTest(ctx context.Context, userID, playlistID, videoID string, force bool) (TestView, error) {
	if userID == "" {
		return TestView{}, &UnauthorizedError{Message: "Sign in to take tests"}
	}
	ref, err := s.resolve(ctx, playlistID, videoID)
	if err != nil {
		return TestView{}, err
	}
	key := CacheKey{VideoID: videoID, PlaylistID: playlistID, UserID: userID}

	if !force {
		cached, hit, err := s.tests.Lookup(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("test lookup failed, generating", zap.String("video_id", videoID), zap.Error(err))
		case hit:
			if s.ledger.ChargesOnCacheHit(ActionTest) {
				if _, err := s.ledger.Reserve(ctx, userID, ActionTest); err != nil {
					return TestView{}, err
				}
			}
			return viewOf(cached), nil
		}
	}

	var out models.TestRecord
	err = s.ledger.Run(ctx, userID, ActionTest, func(ctx context.Context) error {
		t, _, err := s.tests.GetOrGenerate(ctx, key, true, func(ctx context.Context) (models.TestRecord, error) {
			questions, err := s.gen.GenerateTest(ctx, ref)
			if err != nil {
				return models.TestRecord{}, err
			}
			return models.TestRecord{
				VideoID:    videoID,
				PlaylistID: playlistID,
				UserID:     userID,
				Questions:  questions,
				CreatedAt:  s.now().UTC(),
			}, nil
		})
		out = t
		return err
	})
	if err != nil {
		return TestView{}, err
	}
	return viewOf(out), nil
}

// SubmitTest grades answers against the stored questions. -1 marks an
// unanswered question.
func (s *StudyService) SubmitTest(ctx context.Context, userID, playlistID, videoID string, answers []int) (models.TestResult, error) {
	view, err := s.GetTest(ctx, userID, playlistID, videoID)
	if err != nil {
		return models.TestResult{}, err
	}
	t := view.Test

	if len(answers) != len(t.Questions) {
		return models.TestResult{}, &ValidationError{Fields: map[string]string{
			"answers": fmt.Sprintf("expected %d answers, got %d", len(t.Questions), len(answers)),
		}}
	}
	for i, a := range answers {
		if a < -1 || a >= models.OptionsPerQuestion {
			return models.TestResult{}, &ValidationError{Fields: map[string]string{
				"answers": fmt.Sprintf("answer %d is out of range", i+1),
			}}
		}
	}

	score := models.Grade(t.Questions, answers)
	level := models.PerformanceLevel(score)
	key := CacheKey{VideoID: videoID, PlaylistID: playlistID, UserID: userID}
	if err := s.results.SaveResult(ctx, key, score, answers, level); err != nil {
		if IsNotFound(err) {
			return models.TestResult{}, err
		}
		return models.TestResult{}, &TransientNetworkError{Op: "tests.save_result", Err: err}
	}
	if err := s.tests.Invalidate(ctx, key); err != nil {
		s.log.Warn("test hot cache invalidation failed", zap.String("video_id", videoID), zap.Error(err))
	}

	return models.TestResult{
		VideoID:          videoID,
		PlaylistID:       playlistID,
		Score:            score,
		TotalQuestions:   len(t.Questions),
		UserAnswers:      answers,
		PerformanceLevel: level,
		CreatedAt:        t.CreatedAt,
	}, nil
}

// ResultsForPlaylist lists graded tests. Anonymous users have none.
func (s *StudyService) ResultsForPlaylist(ctx context.Context, userID, playlistID string) ([]models.TestResult, error) {
	if userID == "" {
		return []models.TestResult{}, nil
	}
	res, err := s.results.ListGraded(ctx, userID, playlistID)
	if err != nil {
		return nil, &TransientNetworkError{Op: "tests.results", Err: err}
	}
	if res == nil {
		res = []models.TestResult{}
	}
	return res, nil
}

func (s *StudyService) UserStats(ctx context.Context, userID string) (models.UserStats, error) {
	if userID == "" {
		return models.UserStats{}, &UnauthorizedError{Message: "Sign in to see stats"}
	}
	st, err := s.stats.Stats(ctx, userID)
	if err != nil {
		return models.UserStats{}, &TransientNetworkError{Op: "progress.stats", Err: err}
	}
	return st, nil
}
