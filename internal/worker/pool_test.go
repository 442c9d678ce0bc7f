package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrack-backend/internal/models"
)

type flakyDeleter struct {
	failures int
	calls    int
}

func (d *flakyDeleter) DeleteForUser(ctx context.Context, userID, playlistID string) error {
	d.calls++
	if d.calls <= d.failures {
		return errors.New("connection refused")
	}
	return nil
}

type recordingPublisher struct {
	users []string
	msgs  []models.WSMessage
}

func (p *recordingPublisher) PublishUpdate(ctx context.Context, userID string, msg models.WSMessage) {
	p.users = append(p.users, userID)
	p.msgs = append(p.msgs, msg)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{6, time.Minute},
		{10, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestPool_AttemptSucceeds(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPool(nil, &flakyDeleter{}, pub, 1, nil)

	job, retry := p.attempt(context.Background(), CleanupJob{ID: "j1", UserID: "u1", PlaylistID: "PL1"})
	assert.False(t, retry)
	assert.Equal(t, 1, job.Attempts)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, models.EventCleanupCompleted, pub.msgs[0].Type)
	assert.Equal(t, "u1", pub.users[0])
}

func TestPool_AttemptRetriesThenGivesUp(t *testing.T) {
	pub := &recordingPublisher{}
	deleter := &flakyDeleter{failures: 100}
	p := NewPool(nil, deleter, pub, 1, nil)

	job := CleanupJob{ID: "j1", UserID: "u1", PlaylistID: "PL1"}
	for i := 1; i < maxAttempts; i++ {
		var retry bool
		job, retry = p.attempt(context.Background(), job)
		require.True(t, retry, "attempt %d", i)
		assert.Equal(t, i, job.Attempts)
		assert.Equal(t, "connection refused", job.LastError)
	}
	assert.Empty(t, pub.msgs)

	job, retry := p.attempt(context.Background(), job)
	assert.False(t, retry)
	assert.Equal(t, maxAttempts, job.Attempts)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, models.EventCleanupFailed, pub.msgs[0].Type)
	event := pub.msgs[0].Payload.(models.CleanupEvent)
	assert.Equal(t, "PL1", event.PlaylistID)
	assert.Equal(t, maxAttempts, deleter.calls)
}

func TestPool_RecoversAfterTransientFailure(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPool(nil, &flakyDeleter{failures: 1}, pub, 1, nil)

	job, retry := p.attempt(context.Background(), CleanupJob{ID: "j1", UserID: "u1", PlaylistID: "PL1"})
	require.True(t, retry)
	job, retry = p.attempt(context.Background(), job)
	assert.False(t, retry)
	assert.Equal(t, 2, job.Attempts)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, models.EventCleanupCompleted, pub.msgs[0].Type)
}
