package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailboard/internal/classifier"
	"mailboard/internal/gmail"
	"mailboard/internal/model"
	"mailboard/internal/repository"
)

type fakeUserStore struct {
	user        *model.User
	lastImport  *time.Time
	tokensAdded int64
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return f.user, nil
}

func (f *fakeUserStore) UpdateLastImport(ctx context.Context, userID int64, t time.Time) error {
	f.lastImport = &t
	return nil
}

func (f *fakeUserStore) IncrementTokensUsed(ctx context.Context, userID int64, tokens int64) error {
	f.tokensAdded += tokens
	return nil
}

type fakeEmailStore struct {
	existing  map[string]bool
	created   []*model.Email
	createErr error
	nextID    int64
}

func (f *fakeEmailStore) Create(ctx context.Context, e *model.Email) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	e.ID = f.nextID
	f.created = append(f.created, e)
	f.existing[e.GmailID] = true
	return nil
}

func (f *fakeEmailStore) ExistsByGmailID(ctx context.Context, userID int64, gmailID string) (bool, error) {
	return f.existing[gmailID], nil
}

func (f *fakeEmailStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	return len(f.created), nil
}

type fakeTaskStore struct {
	created []*model.Task
}

func (f *fakeTaskStore) Create(ctx context.Context, t *model.Task) error {
	t.ID = int64(len(f.created) + 1)
	f.created = append(f.created, t)
	return nil
}

func (f *fakeTaskStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	return len(f.created), nil
}

type runCompletion struct {
	processed, withTasks, created int
}

type fakeRunStore struct {
	createErr     error
	processing    bool
	lastCompleted *time.Time
	recent        []model.ImportRun

	completed *runCompletion
	failedMsg string
}

func (f *fakeRunStore) Create(ctx context.Context, userID int64) (*model.ImportRun, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.ImportRun{ID: 42, UserID: userID, Status: model.RunProcessing}, nil
}

func (f *fakeRunStore) MarkCompleted(ctx context.Context, runID int64, processed, withTasks, created int) error {
	f.completed = &runCompletion{processed, withTasks, created}
	return nil
}

func (f *fakeRunStore) MarkFailed(ctx context.Context, runID int64, errMsg string) error {
	f.failedMsg = errMsg
	return nil
}

func (f *fakeRunStore) HasProcessing(ctx context.Context, userID int64) (bool, error) {
	return f.processing, nil
}

func (f *fakeRunStore) LastCompletedAt(ctx context.Context, userID int64) (*time.Time, error) {
	return f.lastCompleted, nil
}

func (f *fakeRunStore) ListRecent(ctx context.Context, userID int64, limit int) ([]model.ImportRun, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeGate struct {
	deny     bool
	released bool
}

func (f *fakeGate) TryAcquire(ctx context.Context, userID int64) bool { return !f.deny }
func (f *fakeGate) Release(ctx context.Context, userID int64)         { f.released = true }

type fakeClient struct {
	listErr  error
	handles  []gmail.MessageHandle
	messages map[string]*gmailapi.Message
	getErr   map[string]error
}

func (f *fakeClient) ListMessages(ctx context.Context, maxResults int64, after time.Time) ([]gmail.MessageHandle, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.handles, nil
}

func (f *fakeClient) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	return f.messages[id], nil
}

func (f *fakeClient) GetProfile(ctx context.Context) (string, error) {
	return "user@example.com", nil
}

// fakeClassifier maps gmail ids to pre-canned results and falls back
// for everything else.
type fakeClassifier struct {
	results map[string]classifier.Result
}

func (f *fakeClassifier) Classify(ctx context.Context, email gmail.ParsedEmail) classifier.Result {
	if res, ok := f.results[email.GmailID]; ok {
		return res
	}
	return classifier.Result{Classification: classifier.Fallback()}
}

func (f *fakeClassifier) ClassifyBatch(ctx context.Context, emails []gmail.ParsedEmail, onProgress func(processed, total int)) map[string]classifier.Result {
	out := make(map[string]classifier.Result, len(emails))
	for i, e := range emails {
		out[e.GmailID] = f.Classify(ctx, e)
		if onProgress != nil {
			onProgress(i+1, len(emails))
		}
	}
	return out
}

func testMessage(id, from, subject string) *gmailapi.Message {
	return &gmailapi.Message{
		Id:           id,
		ThreadId:     "thread-" + id,
		Snippet:      "snippet of " + id,
		InternalDate: time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
		},
	}
}

type testEnv struct {
	svc    *ImportService
	users  *fakeUserStore
	emails *fakeEmailStore
	tasks  *fakeTaskStore
	runs   *fakeRunStore
	gate   *fakeGate
}

func newTestEnv(client gmail.Client, cls classifier.Classifier) *testEnv {
	env := &testEnv{
		users: &fakeUserStore{user: &model.User{
			ID:              1,
			GmailConfigured: true,
			GmailToken:      "tok",
		}},
		emails: &fakeEmailStore{existing: map[string]bool{}},
		tasks:  &fakeTaskStore{},
		runs:   &fakeRunStore{},
		gate:   &fakeGate{},
	}
	if cls == nil {
		cls = &fakeClassifier{}
	}
	env.svc = &ImportService{
		users:      env.users,
		emails:     env.emails,
		tasks:      env.tasks,
		runs:       env.runs,
		gate:       env.gate,
		classifier: cls,
		newClient: func(ctx context.Context, token string) (gmail.Client, error) {
			return client, nil
		},
		log:       zap.NewNop(),
		maxEmails: 20,
		cooldown:  5 * time.Minute,
		now:       time.Now,
	}
	return env
}

func TestRunNotConfigured(t *testing.T) {
	env := newTestEnv(&fakeClient{}, nil)
	env.users.user.GmailConfigured = false

	_, err := env.svc.Run(context.Background(), 1)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRunGateDenied(t *testing.T) {
	env := newTestEnv(&fakeClient{}, nil)
	env.gate.deny = true

	_, err := env.svc.Run(context.Background(), 1)
	if !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}
}

func TestRunAlreadyProcessing(t *testing.T) {
	env := newTestEnv(&fakeClient{}, nil)
	env.runs.processing = true

	_, err := env.svc.Run(context.Background(), 1)
	if !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}
	if !env.gate.released {
		t.Error("gate was not released after rejection")
	}
}

func TestRunCreateRace(t *testing.T) {
	env := newTestEnv(&fakeClient{}, nil)
	env.runs.createErr = repository.ErrRunInProgress

	_, err := env.svc.Run(context.Background(), 1)
	if !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}
}

func TestRunCooldown(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		elapsed  time.Duration
		wantWait int
	}{
		{name: "just completed", elapsed: 10 * time.Second, wantWait: 5},
		{name: "three minutes in", elapsed: 3 * time.Minute, wantWait: 2},
		{name: "just under the line", elapsed: 4*time.Minute + 59*time.Second, wantWait: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(&fakeClient{}, nil)
			last := base.Add(-tt.elapsed)
			env.runs.lastCompleted = &last
			env.svc.now = func() time.Time { return base }

			_, err := env.svc.Run(context.Background(), 1)
			var rl *RateLimitedError
			if !errors.As(err, &rl) {
				t.Fatalf("expected RateLimitedError, got %v", err)
			}
			if rl.WaitMinutes != tt.wantWait {
				t.Errorf("WaitMinutes = %d, want %d", rl.WaitMinutes, tt.wantWait)
			}
		})
	}

	t.Run("cooldown elapsed", func(t *testing.T) {
		env := newTestEnv(&fakeClient{}, nil)
		last := base.Add(-5 * time.Minute)
		env.runs.lastCompleted = &last
		env.svc.now = func() time.Time { return base }

		if _, err := env.svc.Run(context.Background(), 1); err != nil {
			t.Fatalf("expected run to proceed after cooldown, got %v", err)
		}
	})
}

func TestRunEmptyMailbox(t *testing.T) {
	env := newTestEnv(&fakeClient{}, nil)

	summary, err := env.svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.EmailsProcessed != 0 || summary.TasksCreated != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
	if env.runs.completed == nil {
		t.Error("run was not marked completed")
	}
}

func TestRunImportsClassifiesAndPersists(t *testing.T) {
	due := "2026-09-01"
	client := &fakeClient{
		handles: []gmail.MessageHandle{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}},
		messages: map[string]*gmailapi.Message{
			"m1": testMessage("m1", "Alice Smith <alice@client.com>", "Contract question"),
			"m2": testMessage("m2", "spam@promo.net", "You won"),
			"m3": testMessage("m3", "Bob <bob@corp.com>", "Weekly sync"),
		},
	}
	cls := &fakeClassifier{results: map[string]classifier.Result{
		"m1": {
			Classification: classifier.Classification{
				Category: model.CategoryClient,
				Priority: model.PriorityHigh,
				HasTask:  true,
				Tasks: []classifier.TaskItem{{
					Description: "Review the contract draft",
					Priority:    model.PriorityHigh,
					DueDate:     &due,
				}},
				Confidence: 90,
			},
			TokensUsed: 120,
		},
		"m2": {
			Classification: classifier.Classification{
				Category:   model.CategorySpam,
				Priority:   model.PriorityLow,
				Confidence: 95,
			},
			TokensUsed: 40,
		},
	}}

	env := newTestEnv(client, cls)
	env.emails.existing["m3"] = true

	summary, err := env.svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.EmailsProcessed != 3 {
		t.Errorf("EmailsProcessed = %d, want 3", summary.EmailsProcessed)
	}
	if summary.EmailsSkipped != 2 {
		t.Errorf("EmailsSkipped = %d, want 2 (one duplicate, one spam)", summary.EmailsSkipped)
	}
	if summary.EmailsWithTasks != 1 || summary.TasksCreated != 1 {
		t.Errorf("task counts = %d/%d, want 1/1", summary.EmailsWithTasks, summary.TasksCreated)
	}

	if len(env.emails.created) != 1 {
		t.Fatalf("stored %d emails, want 1 (spam and duplicates excluded)", len(env.emails.created))
	}
	email := env.emails.created[0]
	if email.GmailID != "m1" || email.Category != model.CategoryClient || !email.HasTask {
		t.Errorf("stored email = %+v", email)
	}
	if email.SenderName != "Alice Smith" || email.SenderID != "alice@client.com" {
		t.Errorf("sender = %q / %q", email.SenderName, email.SenderID)
	}

	if len(env.tasks.created) != 1 {
		t.Fatalf("stored %d tasks, want 1", len(env.tasks.created))
	}
	task := env.tasks.created[0]
	if task.Status != model.TaskPending {
		t.Errorf("task status = %q, want Pending", task.Status)
	}
	if task.EmailID != email.ID {
		t.Errorf("task email id = %d, want %d", task.EmailID, email.ID)
	}
	if !strings.HasSuffix(task.Title, " - Alice Smith") {
		t.Errorf("task title = %q", task.Title)
	}
	if task.AIConfidence != 90 {
		t.Errorf("task confidence = %d, want 90", task.AIConfidence)
	}
	if task.DueDate == nil || task.DueDate.Format("2006-01-02") != due {
		t.Errorf("task due date = %v, want %s", task.DueDate, due)
	}

	if env.runs.completed == nil {
		t.Fatal("run was not marked completed")
	}
	if got := *env.runs.completed; got != (runCompletion{3, 1, 1}) {
		t.Errorf("run completion = %+v", got)
	}
	if env.users.lastImport == nil {
		t.Error("last import cursor was not advanced")
	}
	if env.users.tokensAdded != 160 {
		t.Errorf("tokens added = %d, want 160", env.users.tokensAdded)
	}
	if !env.gate.released {
		t.Error("gate was not released")
	}
}

func TestRunIsIdempotentAcrossReimports(t *testing.T) {
	client := &fakeClient{
		handles: []gmail.MessageHandle{{ID: "m1"}},
		messages: map[string]*gmailapi.Message{
			"m1": testMessage("m1", "alice@client.com", "Hello"),
		},
	}

	env := newTestEnv(client, nil)

	if _, err := env.svc.Run(context.Background(), 1); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := env.svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(env.emails.created) != 1 {
		t.Errorf("stored %d emails after re-import, want 1", len(env.emails.created))
	}
	if summary.EmailsSkipped != 1 {
		t.Errorf("second run skipped = %d, want 1", summary.EmailsSkipped)
	}
}

func TestRunListFailureMarksRunFailed(t *testing.T) {
	env := newTestEnv(&fakeClient{listErr: errors.New("gmail unreachable")}, nil)

	_, err := env.svc.Run(context.Background(), 1)
	if !errors.Is(err, ErrImportFailed) {
		t.Fatalf("expected ErrImportFailed, got %v", err)
	}
	if env.runs.failedMsg == "" {
		t.Error("run was not marked failed")
	}
	if env.runs.completed != nil {
		t.Error("failed run must not also be completed")
	}
}

func TestRunToleratesSingleMessageFailure(t *testing.T) {
	client := &fakeClient{
		handles: []gmail.MessageHandle{{ID: "m1"}, {ID: "m2"}},
		messages: map[string]*gmailapi.Message{
			"m2": testMessage("m2", "bob@corp.com", "Status"),
		},
		getErr: map[string]error{"m1": errors.New("transient fetch error")},
	}

	env := newTestEnv(client, nil)

	summary, err := env.svc.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.EmailsProcessed != 2 {
		t.Errorf("EmailsProcessed = %d, want 2", summary.EmailsProcessed)
	}
	if len(env.emails.created) != 1 || env.emails.created[0].GmailID != "m2" {
		t.Errorf("expected only m2 stored, got %+v", env.emails.created)
	}
	if env.runs.failedMsg != "" {
		t.Error("message-local error must not fail the run")
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(&fakeClient{}, nil)
	env.runs.recent = []model.ImportRun{
		{ID: 7, Status: model.RunProcessing},
		{ID: 6, Status: model.RunCompleted},
	}
	env.emails.created = []*model.Email{{ID: 1}, {ID: 2}}
	env.tasks.created = []*model.Task{{ID: 1}}

	status, err := env.svc.Status(context.Background(), 1)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.IsImporting {
		t.Error("expected IsImporting with a processing run in history")
	}
	if status.EmailCount != 2 || status.TaskCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", status.EmailCount, status.TaskCount)
	}
	if len(status.ImportHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(status.ImportHistory))
	}
}
