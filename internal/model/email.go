package model

import "time"

// Category is the AI-assigned classification of an email.
type Category string

const (
	CategoryClient   Category = "Client"
	CategoryLead     Category = "Lead"
	CategoryInternal Category = "Internal"
	// Spam is a valid classification outcome but spam emails are
	// filtered before storage, so no persisted email carries it.
	CategorySpam Category = "Spam"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryClient, CategoryLead, CategoryInternal, CategorySpam:
		return true
	}
	return false
}

// Email is one ingested Gmail message. Immutable after insert.
type Email struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	GmailID    string    `json:"gmailId"`
	ThreadID   string    `json:"threadId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Snippet    string    `json:"snippet"`
	Category   Category  `json:"category"`
	ReceivedAt time.Time `json:"receivedAt"`
	HasTask    bool      `json:"hasTask"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EmailWithTasks is an email plus lightweight summaries of its tasks,
// used by the processed-emails listing.
type EmailWithTasks struct {
	Email
	Tasks []TaskSummary `json:"tasks"`
}
