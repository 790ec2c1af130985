package model

import "time"

// Priority of a task or of an email overall.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TaskStatus is the user-driven kanban state of a task. The import
// pipeline only ever creates tasks in Pending.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "InProgress"
	TaskCompleted  TaskStatus = "Completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// Task is an actionable item derived from an email.
type Task struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	EmailID      int64      `json:"emailId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     Priority   `json:"priority"`
	Status       TaskStatus `json:"status"`
	DueDate      *time.Time `json:"dueDate"`
	AIConfidence int        `json:"aiConfidence"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TaskSummary is the reduced task shape embedded in email listings.
type TaskSummary struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Priority Priority   `json:"priority"`
	DueDate  *time.Time `json:"dueDate"`
}
