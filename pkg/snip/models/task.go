package models

import "time"

// TaskState is the lifecycle state of a background task.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskDone    TaskState = "done"
	TaskFailed  TaskState = "failed"
)

// Finished reports whether the state is terminal.
func (s TaskState) Finished() bool {
	return s == TaskDone || s == TaskFailed
}

// Task is the persisted status row of a queued background job. Owner is the
// queue instance that accepted it; HeartbeatAt is refreshed by that instance
// until the task finishes.
type Task struct {
	ID          string     `gorm:"primarykey;size:36" json:"task_id"`
	Kind        string     `gorm:"size:64;not null;index" json:"kind"`
	Payload     string     `gorm:"type:text" json:"-"`
	State       TaskState  `gorm:"size:16;not null;index" json:"status"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	Result      string     `gorm:"type:text" json:"-"`
	Owner       string     `gorm:"size:36;index" json:"-"`
	HeartbeatAt *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
