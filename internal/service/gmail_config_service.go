package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mailboard/internal/gmail"
	"mailboard/internal/model"
	"mailboard/internal/repository"
	"mailboard/pkg/logger"
)

// Provider error codes surfaced to clients when credential validation
// fails.
const (
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeGmailAPIError           = "GMAIL_API_ERROR"
)

// ProviderValidationError reports why a mailbox credential was
// rejected, with a stable code and the HTTP status to return.
type ProviderValidationError struct {
	Code       string
	StatusCode int
	Message    string
}

func (e *ProviderValidationError) Error() string {
	return e.Message
}

type gmailConfigStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	UpdateGmailConfig(ctx context.Context, userID int64, token string, referenceDate time.Time) error
	ClearGmailConfig(ctx context.Context, userID int64) error
}

// GmailConfigService validates mailbox credentials against the
// provider before storing them.
type GmailConfigService struct {
	userRepo  gmailConfigStore
	newClient ClientFactory
	log       *zap.Logger
}

func NewGmailConfigService(userRepo *repository.UserRepository, newClient ClientFactory, log *zap.Logger) *GmailConfigService {
	return &GmailConfigService{
		userRepo:  userRepo,
		newClient: newClient,
		log:       log,
	}
}

// GmailConfigStatus is the read side of the mailbox configuration.
// The token itself is never echoed back.
type GmailConfigStatus struct {
	Configured    bool       `json:"configured"`
	ReferenceDate *time.Time `json:"referenceDate"`
	LastImportAt  *time.Time `json:"lastImportAt"`
}

// Status reports whether the user's mailbox is configured.
func (s *GmailConfigService) Status(ctx context.Context, userID int64) (*GmailConfigStatus, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &GmailConfigStatus{
		Configured:    u.GmailConfigured,
		ReferenceDate: u.ReferenceDate,
		LastImportAt:  u.LastImportAt,
	}, nil
}

// Configure validates the access token against the provider's profile
// endpoint and stores it only if the probe succeeds. The reference
// date is informational; imports cursor on last_import_at.
func (s *GmailConfigService) Configure(ctx context.Context, userID int64, accessToken string, referenceDate time.Time) (string, error) {
	log := logger.WithTrace(ctx, s.log).With(zap.Int64("user_id", userID))

	client, err := s.newClient(ctx, accessToken)
	if err != nil {
		return "", err
	}

	address, err := client.GetProfile(ctx)
	if err != nil {
		log.Warn("mailbox credential rejected", zap.Error(err))
		return "", mapProviderError(err)
	}

	if err := s.userRepo.UpdateGmailConfig(ctx, userID, accessToken, referenceDate); err != nil {
		return "", err
	}

	log.Info("mailbox configured", zap.String("address", address))
	return address, nil
}

// Disconnect clears the stored credential.
func (s *GmailConfigService) Disconnect(ctx context.Context, userID int64) error {
	return s.userRepo.ClearGmailConfig(ctx, userID)
}

func mapProviderError(err error) error {
	if errors.Is(err, gmail.ErrUnauthorized) {
		return &ProviderValidationError{
			Code:       CodeTokenExpired,
			StatusCode: 401,
			Message:    "gmail access token is expired or invalid",
		}
	}
	var provErr *gmail.ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode == 403 {
		return &ProviderValidationError{
			Code:       CodeInsufficientPermissions,
			StatusCode: 403,
			Message:    "gmail token lacks the required read scope",
		}
	}
	return &ProviderValidationError{
		Code:       CodeGmailAPIError,
		StatusCode: 502,
		Message:    "gmail api request failed: " + err.Error(),
	}
}
