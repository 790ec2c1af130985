package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailboard/internal/gmail"
	"mailboard/internal/model"
)

type fakeConfigStore struct {
	user        *model.User
	storedToken string
	cleared     bool
}

func (f *fakeConfigStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return f.user, nil
}

func (f *fakeConfigStore) UpdateGmailConfig(ctx context.Context, userID int64, token string, referenceDate time.Time) error {
	f.storedToken = token
	return nil
}

func (f *fakeConfigStore) ClearGmailConfig(ctx context.Context, userID int64) error {
	f.cleared = true
	return nil
}

// profileClient only implements the profile probe; the other calls
// are never reached from config validation.
type profileClient struct {
	address string
	err     error
}

func (p *profileClient) ListMessages(ctx context.Context, maxResults int64, after time.Time) ([]gmail.MessageHandle, error) {
	return nil, nil
}

func (p *profileClient) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	return nil, nil
}

func (p *profileClient) GetProfile(ctx context.Context) (string, error) {
	return p.address, p.err
}

func newConfigService(client gmail.Client) (*GmailConfigService, *fakeConfigStore) {
	store := &fakeConfigStore{user: &model.User{ID: 1}}
	svc := &GmailConfigService{
		userRepo: store,
		newClient: func(ctx context.Context, token string) (gmail.Client, error) {
			return client, nil
		},
		log: zap.NewNop(),
	}
	return svc, store
}

func TestConfigureStoresValidatedToken(t *testing.T) {
	svc, store := newConfigService(&profileClient{address: "user@example.com"})

	address, err := svc.Configure(context.Background(), 1, "tok", time.Now())
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if address != "user@example.com" {
		t.Errorf("address = %q", address)
	}
	if store.storedToken != "tok" {
		t.Errorf("stored token = %q, want tok", store.storedToken)
	}
}

func TestConfigureRejectionCodes(t *testing.T) {
	tests := []struct {
		name       string
		probeErr   error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "expired token",
			probeErr:   gmail.ErrUnauthorized,
			wantCode:   CodeTokenExpired,
			wantStatus: 401,
		},
		{
			name:       "missing scope",
			probeErr:   &gmail.ProviderError{StatusCode: 403, Message: "forbidden"},
			wantCode:   CodeInsufficientPermissions,
			wantStatus: 403,
		},
		{
			name:       "provider outage",
			probeErr:   &gmail.ProviderError{StatusCode: 500, Message: "backend error"},
			wantCode:   CodeGmailAPIError,
			wantStatus: 502,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newConfigService(&profileClient{err: tt.probeErr})

			_, err := svc.Configure(context.Background(), 1, "tok", time.Now())
			var provErr *ProviderValidationError
			if !errors.As(err, &provErr) {
				t.Fatalf("expected ProviderValidationError, got %v", err)
			}
			if provErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", provErr.Code, tt.wantCode)
			}
			if provErr.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", provErr.StatusCode, tt.wantStatus)
			}
			if store.storedToken != "" {
				t.Error("rejected token must not be stored")
			}
		})
	}
}

func TestDisconnectClearsCredential(t *testing.T) {
	svc, store := newConfigService(&profileClient{})

	if err := svc.Disconnect(context.Background(), 1); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !store.cleared {
		t.Error("credential was not cleared")
	}
}
