// Package classifier turns a normalized email into a structured
// judgment: category, priority, actionable tasks and a confidence
// score. Classification must never abort an import, so every failure
// path collapses into a deterministic fallback instead of an error.
package classifier

import (
	"context"
	"regexp"
	"strings"
	"time"

	"mailboard/internal/gmail"
	"mailboard/internal/model"
)

const (
	// Bodies are truncated before prompting to bound token cost.
	maxBodyChars = 5000

	// Task descriptions are capped by the output schema.
	maxDescriptionChars = 150

	titleDescChars = 50
)

// TaskItem is one actionable task detected in an email.
type TaskItem struct {
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority"`
	DueDate     *string        `json:"dueDate"` // ISO 8601 or null
}

// Classification is the structured output of one classify call.
type Classification struct {
	Category   model.Category `json:"category"`
	Priority   model.Priority `json:"priority"`
	HasTask    bool           `json:"hasTask"`
	Tasks      []TaskItem     `json:"tasks"`
	Confidence int            `json:"confidence"`
}

// Result pairs a classification with the provider-reported token
// usage. Fallback results always carry zero tokens.
type Result struct {
	Classification Classification
	TokensUsed     int
}

// Classifier classifies normalized emails. Implementations never
// return an error; on any failure they return Fallback().
type Classifier interface {
	Classify(ctx context.Context, email gmail.ParsedEmail) Result

	// ClassifyBatch classifies strictly one email at a time, pausing
	// between calls to respect provider rate limits, and reports
	// progress after each item. Results are keyed by gmail id.
	ClassifyBatch(ctx context.Context, emails []gmail.ParsedEmail, onProgress func(processed, total int)) map[string]Result
}

// Fallback is the fixed classification used when no AI credential is
// configured or the provider call fails.
func Fallback() Classification {
	return Classification{
		Category:   model.CategoryInternal,
		Priority:   model.PriorityMedium,
		HasTask:    false,
		Tasks:      []TaskItem{},
		Confidence: 0,
	}
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// cleanBody strips HTML tags, collapses whitespace and truncates to
// the prompt budget.
func cleanBody(body string) string {
	runes := []rune(body)
	if len(runes) > maxBodyChars {
		body = string(runes[:maxBodyChars]) + "..."
	}
	body = htmlTagRe.ReplaceAllString(body, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(body, " "))
}

// buildPrompt renders the classification instructions for one email.
// The stale-deadline rule matters for behavioral fidelity: old emails
// mentioning relative dates must not be classified urgent, since
// those deadlines have already passed.
func buildPrompt(email gmail.ParsedEmail, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are an expert assistant for classifying business emails.\n\n")
	b.WriteString("Analyze this email and extract structured information:\n\n")
	b.WriteString("EMAIL DATA:\n")
	b.WriteString("- Sender: " + email.SenderName + " <" + email.SenderID + ">\n")
	b.WriteString("- Subject: " + email.Subject + "\n")
	b.WriteString("- Body: " + cleanBody(email.Body) + "\n")
	b.WriteString("- Received at: " + email.ReceivedAt.UTC().Format(time.RFC3339) + "\n\n")
	b.WriteString("Current system time: " + now.UTC().Format(time.RFC3339) + "\n\n")
	b.WriteString(`INSTRUCTIONS:
1. Classify the email into ONE category:
   - "Client": request or inquiry from a known/existing client
   - "Lead": new prospect showing commercial interest
   - "Internal": team or administrative communication
   - "Spam": no commercial value (promotions, unsolicited newsletters)

2. Determine whether there are actionable task(s):
   - A task is any action the recipient must perform
   - Examples: schedule a meeting, send a quote, follow up, make a call
   - If there are multiple actions, separate them into individual tasks

3. Assign priority based on:
   - "Urgent": contains words like "urgent", "today", "ASAP", or a deadline <24 hours
   - "High": deadline within 1-7 days or an important client request
   - "Medium": deadline >7 days or no explicit urgency
   - "Low": informational with optional action

4. IMPORTANT: if the email is more than 2 days old and mentions relative dates
   like "tomorrow" or "today", consider the deadline expired and do NOT mark
   the task as urgent.

5. If there are no tasks, return hasTask: false and an empty tasks array.

6. For due dates (dueDate), use ISO 8601 format or null if not applicable.

Respond with a JSON object of this exact shape:
{
  "category": "Client" | "Lead" | "Internal" | "Spam",
  "priority": "Urgent" | "High" | "Medium" | "Low",
  "hasTask": boolean,
  "tasks": [{"description": "max 150 chars", "priority": "Urgent" | "High" | "Medium" | "Low", "dueDate": "ISO date or null"}],
  "confidence": 0-100
}`)
	return b.String()
}

// sanitize normalizes a model response into a valid classification.
// Anything structurally unusable degrades to the fallback.
func sanitize(c Classification) Classification {
	if !c.Category.Valid() {
		return Fallback()
	}
	if !c.Priority.Valid() {
		c.Priority = model.PriorityMedium
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 100 {
		c.Confidence = 100
	}
	if c.Tasks == nil {
		c.Tasks = []TaskItem{}
	}
	for i := range c.Tasks {
		if !c.Tasks[i].Priority.Valid() {
			c.Tasks[i].Priority = c.Priority
		}
		if runes := []rune(c.Tasks[i].Description); len(runes) > maxDescriptionChars {
			c.Tasks[i].Description = string(runes[:maxDescriptionChars])
		}
	}
	if !c.HasTask {
		c.Tasks = []TaskItem{}
	}
	return c
}

// GenerateTaskTitle derives a task title from the detected task
// description and the email's sender.
func GenerateTaskTitle(description, senderName string) string {
	short := description
	if runes := []rune(description); len(runes) > titleDescChars {
		short = string(runes[:titleDescChars-3]) + "..."
	}
	return short + " - " + senderName
}
