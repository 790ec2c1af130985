package model

import "time"

// User owns emails, tasks and import runs. GmailToken is the bearer
// credential supplied at gmail-config time; token refresh is out of
// scope, the stored token is used as-is.
type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Name            string     `json:"name"`
	GmailConfigured bool       `json:"gmailConfigured"`
	GmailToken      string     `json:"-"`
	ReferenceDate   *time.Time `json:"referenceDate"`
	LastImportAt    *time.Time `json:"lastImportAt"`
	TokensUsed      int64      `json:"tokensUsed"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
