package gmail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailboard/pkg/metrics"
)

// googleClient adapts *gmailapi.Service to the Client interface.
type googleClient struct {
	svc *gmailapi.Service
}

// NewGoogleClient builds a Client over the Gmail REST API using the
// supplied bearer token. No refresh is attempted; an expired token
// surfaces as ErrUnauthorized.
func NewGoogleClient(ctx context.Context, accessToken string) (Client, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to build gmail service: %w", err)
	}
	return &googleClient{svc: svc}, nil
}

func (g *googleClient) ListMessages(ctx context.Context, maxResults int64, after time.Time) ([]MessageHandle, error) {
	call := g.svc.Users.Messages.List("me").MaxResults(maxResults)
	if !after.IsZero() {
		call = call.Q(fmt.Sprintf("after:%d", after.Unix()))
	}

	start := time.Now()
	res, err := call.Context(ctx).Do()
	if err != nil {
		metrics.RecordMailboxCallLatency("list", "error", time.Since(start))
		return nil, mapError(err)
	}
	metrics.RecordMailboxCallLatency("list", "ok", time.Since(start))

	handles := make([]MessageHandle, 0, len(res.Messages))
	for _, m := range res.Messages {
		handles = append(handles, MessageHandle{ID: m.Id, ThreadID: m.ThreadId})
	}
	return handles, nil
}

func (g *googleClient) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	start := time.Now()
	msg, err := g.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		metrics.RecordMailboxCallLatency("get", "error", time.Since(start))
		return nil, mapError(err)
	}
	metrics.RecordMailboxCallLatency("get", "ok", time.Since(start))
	return msg, nil
}

func (g *googleClient) GetProfile(ctx context.Context) (string, error) {
	start := time.Now()
	profile, err := g.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		metrics.RecordMailboxCallLatency("profile", "error", time.Since(start))
		return "", mapError(err)
	}
	metrics.RecordMailboxCallLatency("profile", "ok", time.Since(start))
	return profile.EmailAddress, nil
}

// mapError translates googleapi errors into the package's taxonomy.
func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 {
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		}
		return &ProviderError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
