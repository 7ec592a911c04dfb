// Package tasks runs background jobs on a bounded worker pool and records
// every state change in the tasks table so callers can poll for status.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/database"
	"github.com/mikepea/snip/pkg/snip/models"
	"gorm.io/gorm"
)

const (
	DefaultWorkers = 1
	DefaultBuffer  = 16

	// DefaultHeartbeat is how often an instance refreshes its unfinished
	// tasks and looks for tasks abandoned by other instances.
	DefaultHeartbeat = 10 * time.Second
	// DefaultStaleAfter is how long a task may go without a heartbeat before
	// its owner is considered gone.
	DefaultStaleAfter = 3 * DefaultHeartbeat
)

var activeStates = []models.TaskState{models.TaskPending, models.TaskRunning}

var (
	ErrQueueFull    = fmt.Errorf("task queue full: %w", api.ErrUnavailable)
	ErrQueueClosed  = fmt.Errorf("task queue stopped: %w", api.ErrUnavailable)
	ErrTaskNotFound = fmt.Errorf("task not found: %w", api.ErrNotFound)
	ErrUnknownKind  = errors.New("unknown task kind")
)

// HandlerFunc executes one task. The returned result, if any, is stored as
// JSON alongside the task.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Queue is a fixed pool of workers fed by a buffered channel. Several
// queues may share one database; each only recovers tasks whose owner has
// stopped sending heartbeats.
type Queue struct {
	db       *gorm.DB
	instance string
	workers  int
	jobs     chan string
	handlers map[string]HandlerFunc
	now      func() time.Time

	heartbeat  time.Duration
	staleAfter time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	quit   chan struct{}
	beats  sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithHeartbeat sets the heartbeat interval and the silence after which
// another instance's unfinished tasks are failed.
func WithHeartbeat(interval, staleAfter time.Duration) Option {
	return func(q *Queue) {
		if interval > 0 {
			q.heartbeat = interval
		}
		if staleAfter > 0 {
			q.staleAfter = staleAfter
		}
	}
}

// NewQueue creates a queue. Handlers must be registered before Start.
func NewQueue(db *gorm.DB, workers, buffer int, opts ...Option) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	q := &Queue{
		db:         db,
		instance:   uuid.New().String(),
		workers:    workers,
		jobs:       make(chan string, buffer),
		handlers:   make(map[string]HandlerFunc),
		now:        time.Now,
		heartbeat:  DefaultHeartbeat,
		staleAfter: DefaultStaleAfter,
		quit:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Handle registers the handler for a task kind.
func (q *Queue) Handle(kind string, fn HandlerFunc) {
	q.handlers[kind] = fn
}

// Start fails tasks abandoned by instances that stopped sending heartbeats,
// then launches the workers and the heartbeat loop. Both run until Stop.
func (q *Queue) Start(ctx context.Context) error {
	if _, err := q.failInterrupted(ctx); err != nil {
		return fmt.Errorf("recover tasks: %w", err)
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
	q.beats.Add(1)
	go q.beat(ctx)
	return nil
}

// Stop refuses new tasks, lets the workers finish what is queued and waits
// for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	close(q.quit)
	q.beats.Wait()
}

// Submit records a pending task and queues it. A full buffer fails the task
// immediately with ErrQueueFull.
func (q *Queue) Submit(ctx context.Context, kind string, payload any) (*models.Task, error) {
	if _, ok := q.handlers[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	now := q.now().UTC()
	task := &models.Task{
		ID:          uuid.New().String(),
		Kind:        kind,
		Payload:     string(data),
		State:       models.TaskPending,
		Owner:       q.instance,
		HeartbeatAt: &now,
	}
	if err := q.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.finish(context.WithoutCancel(ctx), task, nil, ErrQueueClosed)
		return nil, ErrQueueClosed
	}
	select {
	case q.jobs <- task.ID:
		return task, nil
	default:
		q.finish(context.WithoutCancel(ctx), task, nil, ErrQueueFull)
		return nil, ErrQueueFull
	}
}

// Status returns the persisted state of a task.
func (q *Queue) Status(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := q.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// failInterrupted fails unfinished tasks of other instances whose last
// heartbeat is older than staleAfter.
func (q *Queue) failInterrupted(ctx context.Context) (int64, error) {
	now := q.now().UTC()
	res := q.db.WithContext(ctx).Model(&models.Task{}).
		Where("state IN ? AND (owner IS NULL OR owner <> ?) AND (heartbeat_at IS NULL OR heartbeat_at < ?)",
			activeStates, q.instance, now.Add(-q.staleAfter)).
		Updates(map[string]interface{}{
			"state":       models.TaskFailed,
			"error":       "interrupted",
			"finished_at": now,
		})
	if res.RowsAffected > 0 {
		log.Printf("Marked %d interrupted task(s) as failed", res.RowsAffected)
	}
	return res.RowsAffected, res.Error
}

// touch refreshes the heartbeat of every unfinished task this instance owns.
func (q *Queue) touch(ctx context.Context) error {
	return q.db.WithContext(ctx).Model(&models.Task{}).
		Where("owner = ? AND state IN ?", q.instance, activeStates).
		Update("heartbeat_at", q.now().UTC()).Error
}

func (q *Queue) beat(ctx context.Context) {
	defer q.beats.Done()
	persist := context.WithoutCancel(ctx)

	ticker := time.NewTicker(q.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-q.quit:
			return
		case <-ticker.C:
			if err := q.touch(persist); err != nil {
				log.Printf("Failed to refresh task heartbeats: %v", err)
			}
			if _, err := q.failInterrupted(persist); err != nil {
				log.Printf("Failed to recover interrupted tasks: %v", err)
			}
		}
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for id := range q.jobs {
		q.run(ctx, id)
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	// Status writes must land even if ctx is cancelled mid-task.
	persist := context.WithoutCancel(ctx)

	var task models.Task
	if err := q.db.WithContext(persist).First(&task, "id = ?", id).Error; err != nil {
		log.Printf("Failed to load task %s: %v", id, err)
		return
	}

	started := q.now().UTC()
	res := q.db.WithContext(persist).Model(&task).
		Where("state = ?", models.TaskPending).
		Updates(map[string]interface{}{
			"state":        models.TaskRunning,
			"started_at":   started,
			"heartbeat_at": started,
		})
	if res.Error != nil {
		log.Printf("Failed to mark task %s running: %v", id, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		log.Printf("Task %s is no longer pending, skipping", id)
		return
	}

	result, err := q.call(ctx, &task)
	q.finish(persist, &task, result, err)
}

func (q *Queue) call(ctx context.Context, task *models.Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return q.handlers[task.Kind](ctx, json.RawMessage(task.Payload))
}

func (q *Queue) finish(ctx context.Context, task *models.Task, result any, err error) {
	updates := map[string]interface{}{
		"finished_at": q.now().UTC(),
		"error":       "",
	}
	if err != nil {
		updates["state"] = models.TaskFailed
		updates["error"] = err.Error()
		log.Printf("Task %s (%s) failed: %v", task.ID, task.Kind, err)
	} else {
		updates["state"] = models.TaskDone
		if result != nil {
			data, merr := json.Marshal(result)
			if merr != nil {
				updates["state"] = models.TaskFailed
				updates["error"] = fmt.Sprintf("encode result: %v", merr)
			} else {
				updates["result"] = string(data)
			}
		}
	}

	// A task already finished elsewhere keeps its recorded outcome.
	res := q.db.WithContext(ctx).Model(task).
		Where("state IN ?", activeStates).
		Updates(updates)
	if res.Error != nil {
		log.Printf("Failed to record outcome of task %s: %v", task.ID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		log.Printf("Task %s was already finished, outcome discarded", task.ID)
	}
}
