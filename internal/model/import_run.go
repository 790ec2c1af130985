package model

import "time"

// RunStatus is the lifecycle state of an import run. Terminal states
// are immutable once reached.
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// ImportRun is one execution of the fetch-classify-persist pipeline
// for a user. At most one run per user may be processing at a time,
// enforced by a partial unique index on (user_id) where status =
// 'processing'.
type ImportRun struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	EmailsProcessed int        `json:"emailsProcessed"`
	EmailsWithTasks int        `json:"emailsWithTasks"`
	TasksCreated    int        `json:"tasksCreated"`
	Status          RunStatus  `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
	ErrorMessage    *string    `json:"errorMessage"`
}

// ImportSummary is returned to the caller after a run.
type ImportSummary struct {
	EmailsProcessed int `json:"emailsProcessed"`
	EmailsWithTasks int `json:"emailsWithTasks"`
	TasksCreated    int `json:"tasksCreated"`
	EmailsSkipped   int `json:"emailsSkipped"`
}
