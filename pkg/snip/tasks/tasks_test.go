package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikepea/snip/pkg/snip/database"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func waitFinished(t *testing.T, q *Queue, id string) *models.Task {
	t.Helper()
	var task *models.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = q.Status(context.Background(), id)
		return err == nil && task.State.Finished()
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

type echoPayload struct {
	N int `json:"n"`
}

func TestQueueRunsTask(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(setupTestDB(t), 1, 4)
	q.Handle("double", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var p echoPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return echoPayload{N: p.N * 2}, nil
	})
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	task, err := q.Submit(ctx, "double", echoPayload{N: 21})
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.State)
	assert.Len(t, task.ID, 36)

	done := waitFinished(t, q, task.ID)
	assert.Equal(t, models.TaskDone, done.State)
	assert.JSONEq(t, `{"n":42}`, done.Result)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
}

func TestQueueRecordsFailure(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(setupTestDB(t), 1, 4)
	q.Handle("boom", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("exploded")
	})
	q.Handle("panic", func(context.Context, json.RawMessage) (any, error) {
		panic("oh no")
	})
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	task, err := q.Submit(ctx, "boom", nil)
	require.NoError(t, err)
	failed := waitFinished(t, q, task.ID)
	assert.Equal(t, models.TaskFailed, failed.State)
	assert.Equal(t, "exploded", failed.Error)

	task, err = q.Submit(ctx, "panic", nil)
	require.NoError(t, err)
	failed = waitFinished(t, q, task.ID)
	assert.Equal(t, models.TaskFailed, failed.State)
	assert.Contains(t, failed.Error, "oh no")
}

func TestQueueFull(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(setupTestDB(t), 1, 1)
	q.Handle("noop", func(context.Context, json.RawMessage) (any, error) { return nil, nil })

	// Workers not started, so the single buffer slot stays occupied.
	first, err := q.Submit(ctx, "noop", nil)
	require.NoError(t, err)

	_, err = q.Submit(ctx, "noop", nil)
	require.ErrorIs(t, err, ErrQueueFull)

	var failed int64
	require.NoError(t, q.db.Model(&models.Task{}).Where("state = ?", models.TaskFailed).Count(&failed).Error)
	assert.Equal(t, int64(1), failed)

	require.NoError(t, q.Start(ctx))
	assert.Equal(t, models.TaskDone, waitFinished(t, q, first.ID).State)
	q.Stop()

	_, err = q.Submit(ctx, "noop", nil)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueUnknownKind(t *testing.T) {
	q := NewQueue(setupTestDB(t), 1, 1)
	_, err := q.Submit(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestQueueStatusNotFound(t *testing.T) {
	q := NewQueue(setupTestDB(t), 1, 1)
	_, err := q.Status(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestQueueFailsInterruptedTasks(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	earlier := time.Now().UTC().Add(-time.Hour)
	recent := time.Now().UTC()
	seed := []*models.Task{
		{ID: "stale-pending", Kind: "noop", State: models.TaskPending, CreatedAt: earlier},
		{ID: "stale-running", Kind: "noop", State: models.TaskRunning, Owner: "gone", HeartbeatAt: &earlier, CreatedAt: earlier},
		{ID: "live-running", Kind: "noop", State: models.TaskRunning, Owner: "alive", HeartbeatAt: &recent, CreatedAt: earlier},
		{ID: "old-done", Kind: "noop", State: models.TaskDone, Owner: "gone", HeartbeatAt: &earlier, CreatedAt: earlier},
	}
	for _, task := range seed {
		require.NoError(t, db.Create(task).Error)
	}

	q := NewQueue(db, 1, 1)
	q.Handle("noop", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	for _, id := range []string{"stale-pending", "stale-running"} {
		task, err := q.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.TaskFailed, task.State, id)
		assert.Equal(t, "interrupted", task.Error, id)
	}

	task, err := q.Status(ctx, "live-running")
	require.NoError(t, err)
	assert.Equal(t, models.TaskRunning, task.State)
	assert.Empty(t, task.Error)

	task, err = q.Status(ctx, "old-done")
	require.NoError(t, err)
	assert.Equal(t, models.TaskDone, task.State)
}

func TestQueueLeavesOtherInstanceTasksAlone(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	first := NewQueue(db, 1, 4)
	first.Handle("block", func(context.Context, json.RawMessage) (any, error) {
		close(started)
		<-release
		return echoPayload{N: 1}, nil
	})
	require.NoError(t, first.Start(ctx))
	defer first.Stop()
	defer unblock()

	task, err := first.Submit(ctx, "block", nil)
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("task never started")
	}

	second := NewQueue(db, 1, 4)
	second.Handle("block", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	require.NoError(t, second.Start(ctx))
	defer second.Stop()

	running, err := second.Status(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskRunning, running.State)
	assert.Empty(t, running.Error)

	unblock()
	done := waitFinished(t, first, task.ID)
	assert.Equal(t, models.TaskDone, done.State)
	assert.Empty(t, done.Error)
	assert.JSONEq(t, `{"n":1}`, done.Result)
}

func TestQueueReapsTasksOfSilentInstance(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	q := NewQueue(db, 1, 1, WithHeartbeat(20*time.Millisecond, 100*time.Millisecond))
	q.Handle("noop", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	// Another instance picks up a task after this one started, then goes quiet.
	last := time.Now().UTC()
	require.NoError(t, db.Create(&models.Task{ID: "orphan", Kind: "noop", State: models.TaskRunning, Owner: "silent", HeartbeatAt: &last}).Error)

	require.Eventually(t, func() bool {
		task, err := q.Status(ctx, "orphan")
		return err == nil && task.State == models.TaskFailed && task.Error == "interrupted"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestQueueHeartbeatKeepsOwnTasksAlive(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	q := NewQueue(db, 1, 1, WithHeartbeat(10*time.Millisecond, time.Hour))
	q.Handle("block", func(context.Context, json.RawMessage) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, q.Start(ctx))
	defer q.Stop()
	defer unblock()

	task, err := q.Submit(ctx, "block", nil)
	require.NoError(t, err)

	// Well past staleAfter, a second instance must still see a live owner.
	time.Sleep(400 * time.Millisecond)
	other := NewQueue(db, 1, 1, WithHeartbeat(time.Hour, 150*time.Millisecond))
	require.NoError(t, other.Start(ctx))
	defer other.Stop()

	current, err := q.Status(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskRunning, current.State)

	unblock()
	assert.Equal(t, models.TaskDone, waitFinished(t, q, task.ID).State)
}

func TestFinishKeepsTerminalOutcome(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	q := NewQueue(db, 1, 1)

	task := &models.Task{ID: "settled", Kind: "noop", State: models.TaskFailed, Error: "interrupted", Owner: q.instance}
	require.NoError(t, db.Create(task).Error)

	q.finish(ctx, task, echoPayload{N: 7}, nil)

	got, err := q.Status(ctx, "settled")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, got.State)
	assert.Equal(t, "interrupted", got.Error)
	assert.Empty(t, got.Result)
}

func TestScheduler(t *testing.T) {
	q := NewQueue(setupTestDB(t), 1, 4)
	q.Handle("tick", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	s := NewScheduler(q)

	require.NoError(t, s.Add("", "tick", nil))
	assert.Equal(t, 0, s.Entries())

	require.Error(t, s.Add("not a schedule", "tick", nil))

	require.NoError(t, s.Add("@every 100ms", "tick", nil))
	assert.Equal(t, 1, s.Entries())

	require.NoError(t, q.Start(context.Background()))
	s.Start()

	require.Eventually(t, func() bool {
		var done int64
		q.db.Model(&models.Task{}).Where("kind = ? AND state = ?", "tick", models.TaskDone).Count(&done)
		return done > 0
	}, 5*time.Second, 50*time.Millisecond)

	s.Stop()
	q.Stop()
}
