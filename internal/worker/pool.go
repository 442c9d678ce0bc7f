package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

const (
	CleanupQueue = "queue:remote-cleanup"

	maxAttempts = 5
	lockTTL     = 2 * time.Minute
	popTimeout  = 30 * time.Second
)

// CleanupJob retries the remote half of a playlist deletion.
type CleanupJob struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	PlaylistID string    `json:"playlist_id"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RemoteDeleter removes a user's remote rows for one playlist.
type RemoteDeleter interface {
	DeleteForUser(ctx context.Context, userID, playlistID string) error
}

type Pool struct {
	redis       *redis.Client
	deleter     RemoteDeleter
	publisher   services.Publisher
	log         *zap.Logger
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(redisClient *redis.Client, deleter RemoteDeleter, publisher services.Publisher, workerCount int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		deleter:     deleter,
		publisher:   publisher,
		log:         log.With(zap.String("component", "worker")),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

// EnqueueCleanup queues a remote deletion for retry.
func (p *Pool) EnqueueCleanup(ctx context.Context, userID, playlistID string) error {
	job := CleanupJob{
		ID:         uuid.NewString(),
		UserID:     userID,
		PlaylistID: playlistID,
		EnqueuedAt: time.Now().UTC(),
	}
	return p.push(ctx, job)
}

func (p *Pool) push(ctx context.Context, job CleanupJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode cleanup job: %w", err)
	}
	if err := p.redis.LPush(ctx, CleanupQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue cleanup job: %w", err)
	}
	return nil
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("started workers", zap.Int("count", p.workerCount))
}

// Stop signals the workers and waits for in-flight jobs. A worker blocked in
// BLPOP exits when its pop times out.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With(zap.Int("worker", id))

	for {
		select {
		case <-p.stopChan:
			log.Info("worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, CleanupQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job CleanupJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Warn("dropping unreadable job", zap.Error(err))
			continue
		}

		lockKey := "job_lock:" + job.ID
		locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		if next, retry := p.attempt(ctx, job); retry {
			p.requeue(next)
		}

		p.redis.Del(ctx, lockKey)
	}
}

// attempt runs one deletion. It returns the job to retry when the attempt
// failed and attempts remain.
func (p *Pool) attempt(ctx context.Context, job CleanupJob) (CleanupJob, bool) {
	err := p.deleter.DeleteForUser(ctx, job.UserID, job.PlaylistID)
	job.Attempts++

	if err == nil {
		job.LastError = ""
		p.log.Info("remote cleanup completed",
			zap.String("job_id", job.ID),
			zap.String("playlist_id", job.PlaylistID),
			zap.Int("attempts", job.Attempts),
		)
		p.publish(ctx, job, models.EventCleanupCompleted)
		return job, false
	}

	job.LastError = err.Error()
	if job.Attempts < maxAttempts {
		p.log.Warn("remote cleanup failed, retrying",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Duration("backoff", backoff(job.Attempts)),
			zap.Error(err),
		)
		return job, true
	}

	p.log.Error("remote cleanup failed permanently",
		zap.String("job_id", job.ID),
		zap.String("user_id", job.UserID),
		zap.String("playlist_id", job.PlaylistID),
		zap.Error(err),
	)
	p.publish(ctx, job, models.EventCleanupFailed)
	return job, false
}

func (p *Pool) requeue(job CleanupJob) {
	time.AfterFunc(backoff(job.Attempts), func() {
		if err := p.push(context.Background(), job); err != nil {
			p.log.Error("cleanup job lost", zap.String("job_id", job.ID), zap.Error(err))
		}
	})
}

// backoff doubles from 2s and caps at one minute.
func backoff(attempts int) time.Duration {
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > time.Minute {
		return time.Minute
	}
	return d
}

func (p *Pool) publish(ctx context.Context, job CleanupJob, eventType string) {
	if p.publisher == nil {
		return
	}
	p.publisher.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: eventType,
		Payload: models.CleanupEvent{
			JobID:      job.ID,
			PlaylistID: job.PlaylistID,
			Attempts:   job.Attempts,
			Error:      job.LastError,
		},
	})
}
