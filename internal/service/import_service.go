package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"mailboard/internal/classifier"
	"mailboard/internal/events"
	"mailboard/internal/gmail"
	"mailboard/internal/model"
	"mailboard/internal/repository"
	"mailboard/pkg/logger"
	"mailboard/pkg/metrics"
)

var (
	// ErrNotConfigured means the user has not completed mailbox
	// authorization.
	ErrNotConfigured = errors.New("gmail is not configured")

	// ErrAlreadyInProgress means another import run for this user is
	// currently processing.
	ErrAlreadyInProgress = errors.New("an import is already in progress")

	// ErrImportFailed wraps structural failures of a run (not
	// individual message errors).
	ErrImportFailed = errors.New("import failed")
)

// RateLimitedError is returned when the cooldown between completed
// runs has not elapsed.
type RateLimitedError struct {
	WaitMinutes int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("wait %d minute(s) before importing again", e.WaitMinutes)
}

// Narrow persistence surfaces consumed by the orchestrator. The pgx
// repositories satisfy them; tests use fakes.

type userStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	UpdateLastImport(ctx context.Context, userID int64, t time.Time) error
	IncrementTokensUsed(ctx context.Context, userID int64, tokens int64) error
}

type emailStore interface {
	Create(ctx context.Context, e *model.Email) error
	ExistsByGmailID(ctx context.Context, userID int64, gmailID string) (bool, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

type taskStore interface {
	Create(ctx context.Context, t *model.Task) error
	CountByUser(ctx context.Context, userID int64) (int, error)
}

type runStore interface {
	Create(ctx context.Context, userID int64) (*model.ImportRun, error)
	MarkCompleted(ctx context.Context, runID int64, processed, withTasks, created int) error
	MarkFailed(ctx context.Context, runID int64, errMsg string) error
	HasProcessing(ctx context.Context, userID int64) (bool, error)
	LastCompletedAt(ctx context.Context, userID int64) (*time.Time, error)
	ListRecent(ctx context.Context, userID int64, limit int) ([]model.ImportRun, error)
}

// importGate is the Redis fast-path lock in front of the database
// gate.
type importGate interface {
	TryAcquire(ctx context.Context, userID int64) bool
	Release(ctx context.Context, userID int64)
}

// EventPublisher emits domain events best-effort. A nil publisher
// disables events entirely.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// ClientFactory builds a mailbox client from a stored bearer token.
type ClientFactory func(ctx context.Context, accessToken string) (gmail.Client, error)

// ImportService is the import orchestrator: it gates, fetches,
// classifies and persists, one message at a time.
type ImportService struct {
	users      userStore
	emails     emailStore
	tasks      taskStore
	runs       runStore
	gate       importGate
	publisher  EventPublisher
	classifier classifier.Classifier
	newClient  ClientFactory
	log        *zap.Logger

	maxEmails     int
	cooldown      time.Duration
	classifyDelay time.Duration

	// now is injected for cooldown tests.
	now func() time.Time
}

type ImportOptions struct {
	MaxEmails       int
	CooldownMinutes int
	ClassifyDelayMs int
}

func NewImportService(
	users *repository.UserRepository,
	emails *repository.EmailRepository,
	tasks *repository.TaskRepository,
	runs *repository.ImportRunRepository,
	gate importGate,
	publisher EventPublisher,
	cls classifier.Classifier,
	newClient ClientFactory,
	opts ImportOptions,
	log *zap.Logger,
) *ImportService {
	return &ImportService{
		users:         users,
		emails:        emails,
		tasks:         tasks,
		runs:          runs,
		gate:          gate,
		publisher:     publisher,
		classifier:    cls,
		newClient:     newClient,
		log:           log,
		maxEmails:     opts.MaxEmails,
		cooldown:      time.Duration(opts.CooldownMinutes) * time.Minute,
		classifyDelay: time.Duration(opts.ClassifyDelayMs) * time.Millisecond,
		now:           time.Now,
	}
}

// Run executes one import for the user: entry gates, bounded fetch,
// sequential classify-and-persist, terminal state transition.
func (s *ImportService) Run(ctx context.Context, userID int64) (*model.ImportSummary, error) {
	log := logger.WithTrace(ctx, s.log).With(zap.Int64("user_id", userID))

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.GmailConfigured {
		return nil, ErrNotConfigured
	}

	// Fast-path lock; the partial unique index on import_runs is the
	// authority if Redis is down.
	if s.gate != nil {
		if !s.gate.TryAcquire(ctx, userID) {
			return nil, ErrAlreadyInProgress
		}
		defer s.gate.Release(ctx, userID)
	}

	inFlight, err := s.runs.HasProcessing(ctx, userID)
	if err != nil {
		return nil, err
	}
	if inFlight {
		return nil, ErrAlreadyInProgress
	}

	if last, err := s.runs.LastCompletedAt(ctx, userID); err != nil {
		return nil, err
	} else if last != nil {
		elapsed := s.now().Sub(*last)
		if elapsed < s.cooldown {
			wait := int(math.Ceil((s.cooldown - elapsed).Minutes()))
			if wait < 1 {
				wait = 1
			}
			return nil, &RateLimitedError{WaitMinutes: wait}
		}
	}

	run, err := s.runs.Create(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRunInProgress) {
			return nil, ErrAlreadyInProgress
		}
		return nil, err
	}

	summary, err := s.process(ctx, user, run, log)
	if err != nil {
		log.Error("import run failed", zap.Int64("run_id", run.ID), zap.Error(err))
		if markErr := s.runs.MarkFailed(ctx, run.ID, err.Error()); markErr != nil {
			log.Error("failed to mark run as failed", zap.Int64("run_id", run.ID), zap.Error(markErr))
		}
		metrics.IncrementImportRun(string(model.RunFailed))
		s.publish(events.RoutingImportFailed, events.ImportFailedPayload{
			RunID:    run.ID,
			UserID:   userID,
			Error:    err.Error(),
			FailedAt: s.now(),
		}, log)
		return nil, fmt.Errorf("%w: %s", ErrImportFailed, err.Error())
	}
	return summary, nil
}

// process is the body of a run. Any error it returns is structural
// and moves the run to failed; individual message errors never
// escape the loop.
func (s *ImportService) process(ctx context.Context, user *model.User, run *model.ImportRun, log *zap.Logger) (*model.ImportSummary, error) {
	client, err := s.newClient(ctx, user.GmailToken)
	if err != nil {
		return nil, err
	}

	var after time.Time
	if user.LastImportAt != nil {
		after = *user.LastImportAt
	}

	handles, err := client.ListMessages(ctx, int64(s.maxEmails), after)
	if err != nil {
		return nil, err
	}

	if len(handles) == 0 {
		if err := s.runs.MarkCompleted(ctx, run.ID, 0, 0, 0); err != nil {
			return nil, err
		}
		metrics.IncrementImportRun(string(model.RunCompleted))
		return &model.ImportSummary{}, nil
	}

	var (
		withTasks   int
		created     int
		skipped     int
		totalTokens int
	)

	for i, handle := range handles {
		if err := s.processMessage(ctx, user, client, handle, &withTasks, &created, &skipped, &totalTokens); err != nil {
			// A single bad message never aborts the run.
			log.Error("failed to process message",
				zap.String("gmail_id", handle.ID),
				zap.Error(err))
			metrics.IncrementEmailProcessed("failed")
		}

		if i < len(handles)-1 && s.classifyDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.classifyDelay):
			}
		}
	}

	processed := len(handles)
	if err := s.runs.MarkCompleted(ctx, run.ID, processed, withTasks, created); err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastImport(ctx, user.ID, s.now()); err != nil {
		return nil, err
	}
	if totalTokens > 0 {
		if err := s.users.IncrementTokensUsed(ctx, user.ID, int64(totalTokens)); err != nil {
			return nil, err
		}
		metrics.AddTokensUsed(totalTokens)
	}
	metrics.IncrementImportRun(string(model.RunCompleted))

	summary := &model.ImportSummary{
		EmailsProcessed: processed,
		EmailsWithTasks: withTasks,
		TasksCreated:    created,
		EmailsSkipped:   skipped,
	}
	s.publish(events.RoutingImportCompleted, events.ImportCompletedPayload{
		RunID:           run.ID,
		UserID:          user.ID,
		EmailsProcessed: summary.EmailsProcessed,
		EmailsWithTasks: summary.EmailsWithTasks,
		TasksCreated:    summary.TasksCreated,
		EmailsSkipped:   summary.EmailsSkipped,
		CompletedAt:     s.now(),
	}, log)

	log.Info("import completed",
		zap.Int64("run_id", run.ID),
		zap.Int("emails_processed", summary.EmailsProcessed),
		zap.Int("tasks_created", summary.TasksCreated),
		zap.Int("tokens_used", totalTokens))
	return summary, nil
}

// processMessage handles one fetched handle: dedup, classify,
// persist email and tasks.
func (s *ImportService) processMessage(
	ctx context.Context,
	user *model.User,
	client gmail.Client,
	handle gmail.MessageHandle,
	withTasks, created, skipped, totalTokens *int,
) error {
	exists, err := s.emails.ExistsByGmailID(ctx, user.ID, handle.ID)
	if err != nil {
		return err
	}
	if exists {
		*skipped++
		metrics.IncrementEmailProcessed("skipped")
		return nil
	}

	msg, err := client.GetMessage(ctx, handle.ID)
	if err != nil {
		return err
	}
	parsed := gmail.Parse(msg)

	res := s.classifier.Classify(ctx, parsed)
	*totalTokens += res.TokensUsed

	// Spam is filtered upstream of persistence.
	if res.Classification.Category == model.CategorySpam {
		*skipped++
		metrics.IncrementEmailProcessed("spam")
		return nil
	}

	email := &model.Email{
		UserID:     user.ID,
		GmailID:    parsed.GmailID,
		ThreadID:   parsed.ThreadID,
		SenderID:   parsed.SenderID,
		SenderName: parsed.SenderName,
		Subject:    parsed.Subject,
		Body:       parsed.Body,
		Snippet:    parsed.Snippet,
		Category:   res.Classification.Category,
		ReceivedAt: parsed.ReceivedAt,
		HasTask:    res.Classification.HasTask,
	}
	if err := s.emails.Create(ctx, email); err != nil {
		return err
	}
	metrics.IncrementEmailProcessed("imported")

	if res.Classification.HasTask && len(res.Classification.Tasks) > 0 {
		*withTasks++
		for _, item := range res.Classification.Tasks {
			task := &model.Task{
				UserID:       user.ID,
				EmailID:      email.ID,
				Title:        classifier.GenerateTaskTitle(item.Description, parsed.SenderName),
				Description:  item.Description,
				Priority:     item.Priority,
				Status:       model.TaskPending,
				DueDate:      parseDueDate(item.DueDate),
				AIConfidence: res.Classification.Confidence,
			}
			if err := s.tasks.Create(ctx, task); err != nil {
				return err
			}
			*created++
			metrics.IncrementTaskGeneration(string(task.Priority))
			s.publish(events.RoutingTaskCreated, events.TaskCreatedPayload{
				TaskID:   task.ID,
				UserID:   user.ID,
				EmailID:  email.ID,
				Title:    task.Title,
				Priority: string(task.Priority),
				DueDate:  task.DueDate,
			}, s.log)
		}
	}
	return nil
}

// parseDueDate accepts full RFC 3339 timestamps and bare dates; the
// model is allowed to emit either.
func parseDueDate(due *string) *time.Time {
	if due == nil || *due == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, *due); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", *due); err == nil {
		return &t
	}
	return nil
}

// publish sends a domain event; failures are logged, never returned.
func (s *ImportService) publish(routingKey string, payload any, log *zap.Logger) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		log.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}

// ImportStatus is the import-status query response.
type ImportStatus struct {
	IsImporting   bool              `json:"isImporting"`
	EmailCount    int               `json:"emailCount"`
	TaskCount     int               `json:"taskCount"`
	ImportHistory []model.ImportRun `json:"importHistory"`
}

// Status reports whether a run is in flight, total email/task counts,
// and the last 5 run summaries.
func (s *ImportService) Status(ctx context.Context, userID int64) (*ImportStatus, error) {
	runs, err := s.runs.ListRecent(ctx, userID, 5)
	if err != nil {
		return nil, err
	}

	emailCount, err := s.emails.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	taskCount, err := s.tasks.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	isImporting := false
	for _, run := range runs {
		if run.Status == model.RunProcessing {
			isImporting = true
			break
		}
	}

	return &ImportStatus{
		IsImporting:   isImporting,
		EmailCount:    emailCount,
		TaskCount:     taskCount,
		ImportHistory: runs,
	}, nil
}
