package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tubetrack-backend/internal/localstore"
	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

// Fetcher loads a playlist and its videos from the video platform.
type Fetcher interface {
	FetchPlaylist(ctx context.Context, playlistID string) (models.PlaylistDetails, error)
}

type OwnershipStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Playlist, error)
	Save(ctx context.Context, userID string, p models.Playlist) error
	Touch(ctx context.Context, userID, playlistID string, at time.Time) error
	DeleteForUser(ctx context.Context, userID, playlistID string) error
}

type ProgressStore interface {
	ListByPlaylist(ctx context.Context, userID, playlistID string) ([]models.ProgressRecord, error)
	Upsert(ctx context.Context, rec models.ProgressRecord) error
	UpsertBatch(ctx context.Context, userID string, recs []models.ProgressRecord) error
}

type NotesSource interface {
	ListByPlaylist(ctx context.Context, playlistID string) ([]models.NotesRecord, error)
}

type ResultsSource interface {
	ListGraded(ctx context.Context, userID, playlistID string) ([]models.TestResult, error)
}

type CacheInfoSource interface {
	CachedAt(ctx context.Context, playlistID string) (*time.Time, error)
}

// CleanupQueue takes remote deletions that failed in the foreground.
type CleanupQueue interface {
	EnqueueCleanup(ctx context.Context, userID, playlistID string) error
}

// Remote groups the server-side tables the coordinator reads and writes.
type Remote struct {
	Playlists OwnershipStore
	Progress  ProgressStore
	Notes     NotesSource
	Results   ResultsSource
	Cache     CacheInfoSource
}

type Deps struct {
	Local     *localstore.Store
	Remote    Remote
	Playlists *services.GenerationCache[models.PlaylistDetails]
	Fetcher   Fetcher
	Ledger    *services.CreditLedger
	Publisher services.Publisher
	Cleanup   CleanupQueue
	Log       *zap.Logger
}

// PlaylistSnapshot is what the shell renders for an opened playlist. It is a
// fresh value on every call.
type PlaylistSnapshot struct {
	Playlist       models.Playlist               `json:"playlist"`
	Videos         []models.Video                `json:"videos"`
	Progress       models.ProgressMap            `json:"progress"`
	CompletedCount int                           `json:"completed_count"`
	Notes          map[string]models.NotesRecord `json:"notes"`
	TestResults    map[string]models.TestResult  `json:"test_results"`
	RefreshTaskID  string                        `json:"refresh_task_id"`
	SyncWarning    string                        `json:"sync_warning,omitempty"`

	RefreshTask *Task `json:"-"`
	SyncErr     error `json:"-"`
}

// Coordinator keeps the local store and the remote tables in step. It holds
// no playlist state of its own.
type Coordinator struct {
	local     *localstore.Store
	remote    Remote
	playlists *services.GenerationCache[models.PlaylistDetails]
	fetcher   Fetcher
	ledger    *services.CreditLedger
	publisher services.Publisher
	cleanup   CleanupQueue
	log       *zap.Logger
	tasks     *tracker
	now       func() time.Time
}

func New(d Deps) *Coordinator {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		local:     d.Local,
		remote:    d.Remote,
		playlists: d.Playlists,
		fetcher:   d.Fetcher,
		ledger:    d.Ledger,
		publisher: d.Publisher,
		cleanup:   d.Cleanup,
		log:       log,
		tasks:     newTracker(),
		now:       time.Now,
	}
}

// timestamp is the current time at the precision both stores keep.
func (c *Coordinator) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

// LoadPlaylistIndex returns the local playlists, most recently accessed first.
// For a signed-in user the remote ownership rows are merged in first.
func (c *Coordinator) LoadPlaylistIndex(ctx context.Context, userID string) ([]models.Playlist, error) {
	if userID != "" {
		owned, err := c.remote.Playlists.ListByUser(ctx, userID)
		if err != nil {
			c.log.Warn("remote playlist index unavailable, showing local", zap.String("user_id", userID), zap.Error(err))
		}
		for _, p := range owned {
			inserted, err := c.local.InsertPlaylistIfAbsent(ctx, p)
			if err != nil {
				return nil, err
			}
			if inserted {
				continue
			}
			if err := c.local.SetLastAccessed(ctx, p.ID, p.LastAccessedAt); err != nil {
				return nil, err
			}
		}
	}
	return c.local.ListPlaylists(ctx)
}

// OpenPlaylist reads the local copy for display, starts a background refresh
// and, for a signed-in user, migrates local progress to the remote store.
func (c *Coordinator) OpenPlaylist(ctx context.Context, playlistID, userID string) (PlaylistSnapshot, error) {
	p, ok, err := c.local.GetPlaylist(ctx, playlistID)
	if err != nil {
		return PlaylistSnapshot{}, err
	}
	if !ok {
		return PlaylistSnapshot{}, &services.NotFoundError{Message: "Playlist not found"}
	}

	now := c.timestamp()
	if err := c.local.SetLastAccessed(ctx, playlistID, now); err != nil {
		return PlaylistSnapshot{}, err
	}
	p.LastAccessedAt = now

	videos, err := c.local.ListVideos(ctx, playlistID)
	if err != nil {
		return PlaylistSnapshot{}, err
	}
	localProgress, err := c.local.ListProgress(ctx, playlistID)
	if err != nil {
		return PlaylistSnapshot{}, err
	}
	localNotes, err := c.local.ListNotes(ctx, playlistID)
	if err != nil {
		return PlaylistSnapshot{}, err
	}

	task := c.startRefresh(userID, playlistID)
	snap := PlaylistSnapshot{
		Playlist:      p,
		Videos:        videos,
		TestResults:   map[string]models.TestResult{},
		RefreshTask:   task,
		RefreshTaskID: task.ID(),
	}

	if userID == "" {
		snap.Progress = models.NewProgressMap(localProgress)
		snap.Notes = models.MergeNotes(localNotes, nil)
		snap.CompletedCount = snap.Progress.CompletedCount()
		return snap, nil
	}

	if err := c.remote.Playlists.Touch(ctx, userID, playlistID, now); err != nil {
		c.log.Warn("remote access time not updated", zap.String("playlist_id", playlistID), zap.Error(err))
	}

	snap.Progress, snap.SyncErr = c.migrateProgress(ctx, userID, playlistID, localProgress)
	if snap.SyncErr != nil {
		snap.SyncWarning = snap.SyncErr.Error()
	}
	snap.CompletedCount = snap.Progress.CompletedCount()
	snap.Notes = c.mergeRemoteNotes(ctx, playlistID, localNotes)

	results, err := c.remote.Results.ListGraded(ctx, userID, playlistID)
	if err != nil {
		c.log.Warn("test results unavailable", zap.String("playlist_id", playlistID), zap.Error(err))
	}
	for _, r := range results {
		snap.TestResults[r.VideoID] = r
	}
	return snap, nil
}

// migrateProgress moves the local shadow rows for the playlist to the remote
// store in one batch, then returns the remote view. If the batch fails the
// local rows stay and are merged over the remote view.
func (c *Coordinator) migrateProgress(ctx context.Context, userID, playlistID string, local []models.ProgressRecord) (models.ProgressMap, error) {
	var syncErr error
	if len(local) > 0 {
		recs := make([]models.ProgressRecord, len(local))
		for i, rec := range local {
			rec.UserID = userID
			recs[i] = rec
		}

		if err := c.remote.Progress.UpsertBatch(ctx, userID, recs); err != nil {
			syncErr = &services.PartialSyncFailureError{PlaylistID: playlistID, Pending: len(local), Err: err}
			c.log.Warn("progress migration failed, keeping local rows",
				zap.String("playlist_id", playlistID),
				zap.Int("pending", len(local)),
				zap.Error(err),
			)
		} else if err := c.local.DeleteProgress(ctx, local); err != nil {
			// Already upserted remotely; a retry on the next open is idempotent.
			c.log.Warn("migrated progress not cleared locally", zap.String("playlist_id", playlistID), zap.Error(err))
		}
	}

	remote, err := c.remote.Progress.ListByPlaylist(ctx, userID, playlistID)
	if err != nil {
		c.log.Warn("remote progress unavailable, showing local", zap.String("playlist_id", playlistID), zap.Error(err))
		return models.NewProgressMap(local), syncErr
	}

	progress := models.NewProgressMap(remote)
	if syncErr != nil {
		for _, rec := range local {
			progress.Merge(rec)
		}
	}
	return progress, syncErr
}

func (c *Coordinator) mergeRemoteNotes(ctx context.Context, playlistID string, local []models.NotesRecord) map[string]models.NotesRecord {
	remote, err := c.remote.Notes.ListByPlaylist(ctx, playlistID)
	if err != nil {
		c.log.Warn("remote notes unavailable, showing local", zap.String("playlist_id", playlistID), zap.Error(err))
		return models.MergeNotes(local, nil)
	}
	for _, n := range remote {
		if err := c.local.PutNotes(ctx, n); err != nil {
			c.log.Warn("remote notes not copied locally", zap.String("video_id", n.VideoID), zap.Error(err))
		}
	}
	return models.MergeNotes(local, remote)
}

// Refresh refetches a playlist already in the local store and replaces the
// local copy. Nothing local changes when the fetch fails. Playlists enter the
// store only through AddPlaylist.
func (c *Coordinator) Refresh(ctx context.Context, playlistID string, force bool) (models.PlaylistDetails, error) {
	if playlistID == "" {
		return models.PlaylistDetails{}, &services.ValidationError{Fields: map[string]string{"playlist_id": "required"}}
	}
	exists, err := c.local.HasPlaylist(ctx, playlistID)
	if err != nil {
		return models.PlaylistDetails{}, err
	}
	if !exists {
		return models.PlaylistDetails{}, &services.NotFoundError{Message: "Playlist not found"}
	}
	return c.refresh(ctx, playlistID, force, true)
}

func (c *Coordinator) fetch(ctx context.Context, playlistID string, force bool) (models.PlaylistDetails, error) {
	if playlistID == "" {
		return models.PlaylistDetails{}, &services.ValidationError{Fields: map[string]string{"playlist_id": "required"}}
	}
	fetch := func(ctx context.Context) (models.PlaylistDetails, error) {
		return c.fetcher.FetchPlaylist(ctx, playlistID)
	}
	if c.playlists == nil {
		return fetch(ctx)
	}
	details, _, err := c.playlists.GetOrGenerate(ctx, services.CacheKey{PlaylistID: playlistID}, force, fetch)
	return details, err
}

// refresh with onlyIfPresent set skips the write when the playlist was
// deleted locally while the fetch was in flight.
func (c *Coordinator) refresh(ctx context.Context, playlistID string, force, onlyIfPresent bool) (models.PlaylistDetails, error) {
	details, err := c.fetch(ctx, playlistID, force)
	if err != nil {
		return models.PlaylistDetails{}, err
	}
	details.Playlist.ID = playlistID
	details.Videos = models.SortVideos(details.Videos)

	if onlyIfPresent {
		exists, err := c.local.HasPlaylist(ctx, playlistID)
		if err != nil {
			return models.PlaylistDetails{}, err
		}
		if !exists {
			return details, nil
		}
	}

	now := c.timestamp()
	if err := c.local.UpsertPlaylist(ctx, details, now); err != nil {
		return models.PlaylistDetails{}, err
	}
	details.Playlist.LastAccessedAt = now
	return details, nil
}

func (c *Coordinator) startRefresh(userID, playlistID string) *Task {
	return c.tasks.start("refresh", playlistID, func(ctx context.Context, taskID string) error {
		details, err := c.refresh(ctx, playlistID, false, true)
		event := models.TaskEvent{TaskID: taskID, PlaylistID: playlistID}
		if err != nil {
			c.log.Warn("background refresh failed", zap.String("playlist_id", playlistID), zap.Error(err))
			event.Error = err.Error()
			c.publish(ctx, userID, models.EventRefreshFailed, event)
			return err
		}
		event.Playlist = &details.Playlist
		event.VideoCount = len(details.Videos)
		c.publish(ctx, userID, models.EventRefreshCompleted, event)
		return nil
	})
}

func (c *Coordinator) publish(ctx context.Context, userID, eventType string, payload interface{}) {
	if c.publisher == nil {
		return
	}
	c.publisher.PublishUpdate(ctx, userID, models.WSMessage{Type: eventType, Payload: payload})
}

// AddPlaylist opens an already known playlist, or fetches and stores a new
// one. Fetching for a signed-in user is charged as a search.
func (c *Coordinator) AddPlaylist(ctx context.Context, playlistID, userID string) (models.Playlist, error) {
	if playlistID == "" {
		return models.Playlist{}, &services.ValidationError{Fields: map[string]string{"url": "not a playlist link or id"}}
	}

	p, exists, err := c.local.GetPlaylist(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, err
	}
	if exists {
		now := c.timestamp()
		if err := c.local.SetLastAccessed(ctx, playlistID, now); err != nil {
			return models.Playlist{}, err
		}
		p.LastAccessedAt = now
		c.saveOwnership(ctx, userID, p)
		return p, nil
	}

	var details models.PlaylistDetails
	store := func(ctx context.Context) error {
		d, err := c.refresh(ctx, playlistID, false, false)
		details = d
		return err
	}

	if userID == "" {
		err = store(ctx)
	} else {
		err = c.ledger.Run(ctx, userID, services.ActionSearch, store)
	}
	if err != nil {
		return models.Playlist{}, err
	}

	c.saveOwnership(ctx, userID, details.Playlist)
	c.log.Info("playlist added",
		zap.String("playlist_id", playlistID),
		zap.Int("videos", len(details.Videos)),
	)
	return details.Playlist, nil
}

func (c *Coordinator) saveOwnership(ctx context.Context, userID string, p models.Playlist) {
	if userID == "" {
		return
	}
	if err := c.remote.Playlists.Save(ctx, userID, p); err != nil {
		c.log.Warn("remote ownership not saved", zap.String("playlist_id", p.ID), zap.Error(err))
	}
}

// DeletePlaylist removes the local copy, then the signed-in user's remote
// rows. A failed remote delete is queued for retry rather than undone locally.
func (c *Coordinator) DeletePlaylist(ctx context.Context, playlistID, userID string) error {
	if err := c.local.DeletePlaylist(ctx, playlistID); err != nil {
		return err
	}
	if userID == "" {
		return nil
	}

	err := c.remote.Playlists.DeleteForUser(ctx, userID, playlistID)
	if err == nil {
		return nil
	}
	c.log.Warn("remote delete failed, queueing cleanup", zap.String("playlist_id", playlistID), zap.Error(err))
	if c.cleanup == nil {
		return nil
	}
	if qerr := c.cleanup.EnqueueCleanup(context.WithoutCancel(ctx), userID, playlistID); qerr != nil {
		c.log.Error("remote cleanup not queued",
			zap.String("user_id", userID),
			zap.String("playlist_id", playlistID),
			zap.Error(qerr),
		)
	}
	return nil
}

// ToggleProgress flips a video's completion. Signed-in users write the
// remote store; anonymous progress stays in the local shadow table.
func (c *Coordinator) ToggleProgress(ctx context.Context, userID, playlistID, videoID string) (models.ProgressRecord, error) {
	if _, ok, err := c.local.GetVideo(ctx, playlistID, videoID); err != nil {
		return models.ProgressRecord{}, err
	} else if !ok {
		return models.ProgressRecord{}, &services.NotFoundError{Message: "Video not found in playlist"}
	}

	now := c.timestamp()
	if userID == "" {
		cur, _, err := c.local.GetProgress(ctx, playlistID, videoID)
		if err != nil {
			return models.ProgressRecord{}, err
		}
		rec := models.ProgressRecord{VideoID: videoID, PlaylistID: playlistID, Completed: !cur.Completed, UpdatedAt: now}
		if err := c.local.PutProgress(ctx, rec); err != nil {
			return models.ProgressRecord{}, err
		}
		return rec, nil
	}

	remote, err := c.remote.Progress.ListByPlaylist(ctx, userID, playlistID)
	if err != nil {
		return models.ProgressRecord{}, &services.TransientNetworkError{Op: "progress.list", Err: err}
	}
	current := models.NewProgressMap(remote)
	if pending, ok, err := c.local.GetProgress(ctx, playlistID, videoID); err != nil {
		return models.ProgressRecord{}, err
	} else if ok {
		current.Merge(pending)
	}

	rec := models.ProgressRecord{
		UserID:     userID,
		VideoID:    videoID,
		PlaylistID: playlistID,
		Completed:  !current[videoID].Completed,
		UpdatedAt:  now,
	}
	if err := c.remote.Progress.Upsert(ctx, rec); err != nil {
		return models.ProgressRecord{}, &services.TransientNetworkError{Op: "progress.upsert", Err: err}
	}
	return rec, nil
}

// CacheInfo reports when the playlist metadata was last cached remotely.
func (c *Coordinator) CacheInfo(ctx context.Context, playlistID string) (*time.Time, error) {
	if c.remote.Cache == nil {
		return nil, nil
	}
	at, err := c.remote.Cache.CachedAt(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("cache info: %w", err)
	}
	return at, nil
}

// Task returns a recent background task by id.
func (c *Coordinator) Task(id string) (*Task, bool) {
	return c.tasks.get(id)
}

// Shutdown waits for background refreshes to finish or ctx to end.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return c.tasks.shutdown(ctx)
}

// TaskStatus reports a recent background task by id.
func (c *Coordinator) TaskStatus(id string) (models.TaskStatus, bool) {
	t, ok := c.tasks.get(id)
	if !ok {
		return models.TaskStatus{}, false
	}
	return t.Status(), true
}
