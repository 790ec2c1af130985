package model

import "time"

// NotificationKind tags what a notification is about.
type NotificationKind string

const (
	NotificationImportCompleted NotificationKind = "import_completed"
	NotificationImportFailed    NotificationKind = "import_failed"
	NotificationTaskCreated     NotificationKind = "task_created"
)

// Notification is one entry in the user's activity feed, written by
// the worker from domain events.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}
