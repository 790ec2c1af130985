// Package gmail wraps the narrow Gmail surface the import pipeline
// needs: listing new message handles, fetching full messages, and
// validating the stored bearer credential.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

// ErrUnauthorized means the bearer credential is absent or was
// rejected by the provider.
var ErrUnauthorized = errors.New("gmail: unauthorized")

// ProviderError is any other non-2xx answer from the provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gmail: provider error %d: %s", e.StatusCode, e.Message)
}

// MessageHandle is the lightweight id pair returned by a list call.
type MessageHandle struct {
	ID       string
	ThreadID string
}

// Client is the mailbox surface used by the import orchestrator.
// All calls are read-only against the remote provider.
type Client interface {
	// ListMessages returns up to maxResults handles of messages newer
	// than after (provider default order, newest first). A zero after
	// means no lower bound.
	ListMessages(ctx context.Context, maxResults int64, after time.Time) ([]MessageHandle, error)

	// GetMessage fetches the full message for one handle.
	GetMessage(ctx context.Context, id string) (*gmailapi.Message, error)

	// GetProfile validates the credential against the provider's
	// profile endpoint and returns the mailbox address.
	GetProfile(ctx context.Context) (string, error)
}
