package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tubetrack-backend/internal/models"
)

const (
	taskTimeout   = 2 * time.Minute
	taskRetention = 10 * time.Minute
)

// Task is a handle on detached background work.
type Task struct {
	id         string
	kind       string
	playlistID string
	startedAt  time.Time
	done       chan struct{}

	mu         sync.Mutex
	finishedAt time.Time
	err        error
}

func (t *Task) ID() string { return t.id }

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends, returning the task's error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result is the task's error. It is nil while the task is running.
func (t *Task) Result() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) Status() models.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := models.TaskStatus{
		ID:         t.id,
		Kind:       t.kind,
		PlaylistID: t.playlistID,
		State:      "running",
		StartedAt:  t.startedAt,
	}
	select {
	case <-t.done:
		finished := t.finishedAt
		s.FinishedAt = &finished
		s.State = "succeeded"
		if t.err != nil {
			s.State = "failed"
			s.Error = t.err.Error()
		}
	default:
	}
	return s
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.finishedAt = time.Now()
	t.mu.Unlock()
	close(t.done)
}

// tracker owns detached tasks so they can be looked up by id and drained on
// shutdown.
type tracker struct {
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*Task
}

func newTracker() *tracker {
	base, cancel := context.WithCancel(context.Background())
	return &tracker{base: base, cancel: cancel, tasks: make(map[string]*Task)}
}

func (tr *tracker) start(kind, playlistID string, fn func(ctx context.Context, taskID string) error) *Task {
	t := &Task{
		id:         uuid.NewString(),
		kind:       kind,
		playlistID: playlistID,
		startedAt:  time.Now(),
		done:       make(chan struct{}),
	}

	tr.mu.Lock()
	tr.prune()
	tr.tasks[t.id] = t
	tr.mu.Unlock()

	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		ctx, cancel := context.WithTimeout(tr.base, taskTimeout)
		defer cancel()
		t.finish(fn(ctx, t.id))
	}()
	return t
}

func (tr *tracker) get(id string) (*Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.tasks[id]
	return t, ok
}

// prune drops finished tasks past retention. Caller holds tr.mu.
func (tr *tracker) prune() {
	cutoff := time.Now().Add(-taskRetention)
	for id, t := range tr.tasks {
		select {
		case <-t.done:
			t.mu.Lock()
			old := t.finishedAt.Before(cutoff)
			t.mu.Unlock()
			if old {
				delete(tr.tasks, id)
			}
		default:
		}
	}
}

// shutdown waits for running tasks. If ctx ends first the tasks are
// cancelled and ctx's error is returned.
func (tr *tracker) shutdown(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		tr.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		tr.cancel()
		return nil
	case <-ctx.Done():
		tr.cancel()
		<-drained
		return ctx.Err()
	}
}
