// Package events defines the payloads published to the domain event
// exchange. Publishing is best-effort telemetry for downstream
// consumers; a publish failure never fails the operation that raised
// the event.
package events

import "time"

// Routing keys on the mailboard.events topic exchange.
const (
	RoutingImportCompleted = "import.completed"
	RoutingImportFailed    = "import.failed"
	RoutingTaskCreated     = "task.created"
)

type ImportCompletedPayload struct {
	RunID           int64     `json:"run_id"`
	UserID          int64     `json:"user_id"`
	EmailsProcessed int       `json:"emails_processed"`
	EmailsWithTasks int       `json:"emails_with_tasks"`
	TasksCreated    int       `json:"tasks_created"`
	EmailsSkipped   int       `json:"emails_skipped"`
	CompletedAt     time.Time `json:"completed_at"`
}

type ImportFailedPayload struct {
	RunID    int64     `json:"run_id"`
	UserID   int64     `json:"user_id"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type TaskCreatedPayload struct {
	TaskID   int64      `json:"task_id"`
	UserID   int64      `json:"user_id"`
	EmailID  int64      `json:"email_id"`
	Title    string     `json:"title"`
	Priority string     `json:"priority"`
	DueDate  *time.Time `json:"due_date"`
}
