package service

import (
	"context"
	"math"
	"time"

	"mailboard/internal/model"
	"mailboard/internal/repository"
)

// AnalyticsService aggregates board statistics. All heavy grouping is
// pushed into SQL; this layer only shapes the results.
type AnalyticsService struct {
	emails *repository.EmailRepository
	tasks  *repository.TaskRepository

	now func() time.Time
}

func NewAnalyticsService(emails *repository.EmailRepository, tasks *repository.TaskRepository) *AnalyticsService {
	return &AnalyticsService{
		emails: emails,
		tasks:  tasks,
		now:    time.Now,
	}
}

type Overview struct {
	TotalEmails        int     `json:"totalEmails"`
	TotalTasks         int     `json:"totalTasks"`
	ActiveTasks        int     `json:"activeTasks"`
	CompletedTasks     int     `json:"completedTasks"`
	CompletionRate     float64 `json:"completionRate"`
	EmailsToday        int     `json:"emailsToday"`
	AvgResolutionHours float64 `json:"avgResolutionHours"`
	EmailsTrend        float64 `json:"emailsTrend"`
	TasksTrend         float64 `json:"tasksTrend"`
}

// Overview reports board-level totals plus percentage trends of the
// last 30 days against the 30 days before that.
func (s *AnalyticsService) Overview(ctx context.Context, userID int64) (*Overview, error) {
	now := s.now()

	totalEmails, err := s.emails.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	totalTasks, err := s.tasks.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.tasks.CountByStatuses(ctx, userID,
		[]model.TaskStatus{model.TaskPending, model.TaskInProgress}, nil, nil)
	if err != nil {
		return nil, err
	}
	completed, err := s.tasks.CountByStatuses(ctx, userID,
		[]model.TaskStatus{model.TaskCompleted}, nil, nil)
	if err != nil {
		return nil, err
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	emailsToday, err := s.emails.CountReceivedSince(ctx, userID, startOfDay)
	if err != nil {
		return nil, err
	}

	spans, err := s.tasks.CompletedSpansSince(ctx, userID, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	var avgHours float64
	if len(spans) > 0 {
		var total time.Duration
		for _, span := range spans {
			total += span.UpdatedAt.Sub(span.CreatedAt)
		}
		avgHours = total.Hours() / float64(len(spans))
	}

	monthAgo := now.AddDate(0, 0, -30)
	twoMonthsAgo := now.AddDate(0, 0, -60)

	emailsRecent, err := s.emails.CountReceivedBetween(ctx, userID, monthAgo, now)
	if err != nil {
		return nil, err
	}
	emailsPrior, err := s.emails.CountReceivedBetween(ctx, userID, twoMonthsAgo, monthAgo)
	if err != nil {
		return nil, err
	}
	tasksRecent, err := s.tasks.CountCreatedBetween(ctx, userID, monthAgo, now)
	if err != nil {
		return nil, err
	}
	tasksPrior, err := s.tasks.CountCreatedBetween(ctx, userID, twoMonthsAgo, monthAgo)
	if err != nil {
		return nil, err
	}

	var rate float64
	if totalTasks > 0 {
		rate = round1(float64(completed) / float64(totalTasks) * 100)
	}

	return &Overview{
		TotalEmails:        totalEmails,
		TotalTasks:         totalTasks,
		ActiveTasks:        active,
		CompletedTasks:     completed,
		CompletionRate:     rate,
		EmailsToday:        emailsToday,
		AvgResolutionHours: round1(avgHours),
		EmailsTrend:        trend(emailsRecent, emailsPrior),
		TasksTrend:         trend(tasksRecent, tasksPrior),
	}, nil
}

type Distribution struct {
	ByStatus   map[model.TaskStatus]int                    `json:"byStatus"`
	ByPriority map[model.Priority]map[model.TaskStatus]int `json:"byPriority"`
}

// TasksDistribution returns task counts by status and by
// priority broken down per status.
func (s *AnalyticsService) TasksDistribution(ctx context.Context, userID int64) (*Distribution, error) {
	rows, err := s.tasks.Distribution(ctx, userID)
	if err != nil {
		return nil, err
	}

	dist := &Distribution{
		ByStatus:   map[model.TaskStatus]int{},
		ByPriority: map[model.Priority]map[model.TaskStatus]int{},
	}
	for _, row := range rows {
		dist.ByStatus[row.Status] += row.Count
		if dist.ByPriority[row.Priority] == nil {
			dist.ByPriority[row.Priority] = map[model.TaskStatus]int{}
		}
		dist.ByPriority[row.Priority][row.Status] = row.Count
	}
	return dist, nil
}

// TopSenders returns the senders with the most stored emails, with
// per-sender task and completion counts.
func (s *AnalyticsService) TopSenders(ctx context.Context, userID int64, limit int) ([]repository.SenderStats, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	return s.emails.TopSenders(ctx, userID, limit)
}

type UpcomingItem struct {
	Task         model.Task     `json:"task"`
	EmailSubject string         `json:"emailSubject"`
	SenderName   string         `json:"senderName"`
	Category     model.Category `json:"category"`
	DaysUntilDue int            `json:"daysUntilDue"`
}

// UpcomingTasks returns open tasks due within daysAhead days, soonest
// first, each annotated with the whole days remaining.
func (s *AnalyticsService) UpcomingTasks(ctx context.Context, userID int64, daysAhead int) ([]UpcomingItem, error) {
	if daysAhead <= 0 || daysAhead > 90 {
		daysAhead = 7
	}
	now := s.now()

	rows, err := s.tasks.Upcoming(ctx, userID, now, now.AddDate(0, 0, daysAhead))
	if err != nil {
		return nil, err
	}

	items := make([]UpcomingItem, 0, len(rows))
	for _, row := range rows {
		item := UpcomingItem{
			Task:         row.Task,
			EmailSubject: row.EmailSubject,
			SenderName:   row.SenderName,
			Category:     row.Category,
		}
		if row.Task.DueDate != nil {
			item.DaysUntilDue = int(math.Ceil(row.Task.DueDate.Sub(now).Hours() / 24))
		}
		items = append(items, item)
	}
	return items, nil
}

// ProductivityHeatmap buckets completed tasks into a weekday-by-hour
// grid (Sunday = 0) over the trailing window.
func (s *AnalyticsService) ProductivityHeatmap(ctx context.Context, userID int64, days int) ([7][24]int, error) {
	var grid [7][24]int
	if days <= 0 || days > 365 {
		days = 30
	}

	times, err := s.tasks.CompletionTimes(ctx, userID, s.now().AddDate(0, 0, -days))
	if err != nil {
		return grid, err
	}
	for _, t := range times {
		grid[int(t.Weekday())][t.Hour()]++
	}
	return grid, nil
}

type CategoryDay struct {
	Date   string                 `json:"date"`
	Counts map[model.Category]int `json:"counts"`
}

// EmailsByCategory returns a daily timeline of stored email counts per
// category over the trailing window. Days with no email are omitted.
func (s *AnalyticsService) EmailsByCategory(ctx context.Context, userID int64, days int) ([]CategoryDay, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	rows, err := s.emails.CountByCategoryPerDay(ctx, userID, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}

	// Rows arrive ordered by day; fold consecutive rows of the same
	// day into one entry.
	timeline := []CategoryDay{}
	for _, row := range rows {
		date := row.Date.Format("2006-01-02")
		if len(timeline) == 0 || timeline[len(timeline)-1].Date != date {
			timeline = append(timeline, CategoryDay{Date: date, Counts: map[model.Category]int{}})
		}
		timeline[len(timeline)-1].Counts[row.Category] += row.Count
	}
	return timeline, nil
}

// trend is the percent change of current against prior; a fresh board
// with prior == 0 reports 100 when anything happened at all.
func trend(current, prior int) float64 {
	if prior == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return round1(float64(current-prior) / float64(prior) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
