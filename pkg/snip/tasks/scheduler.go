package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler submits tasks to a queue on cron schedules.
type Scheduler struct {
	queue *Queue
	cron  *cron.Cron
}

// NewScheduler creates a scheduler feeding q.
func NewScheduler(q *Queue) *Scheduler {
	return &Scheduler{
		queue: q,
		cron:  cron.New(),
	}
}

// Add schedules a task of the given kind. An empty schedule is a no-op.
func (s *Scheduler) Add(schedule, kind string, payload any) error {
	if schedule == "" {
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		task, err := s.queue.Submit(context.Background(), kind, payload)
		if err != nil {
			log.Printf("Scheduled %s not submitted: %v", kind, err)
			return
		}
		log.Printf("Scheduled %s submitted as task %s", kind, task.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", kind, err)
	}
	return nil
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any submission in progress.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
