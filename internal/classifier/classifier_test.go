package classifier

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailboard/internal/gmail"
	"mailboard/internal/model"
)

func TestFallbackDeterminism(t *testing.T) {
	// With no API key configured, every call must return exactly the
	// fallback classification, with no network dependency.
	c := NewOpenAIClassifier("", "gpt-4o-mini", 1024, 0.1, 0, zap.NewNop())

	email := gmail.ParsedEmail{
		GmailID:    "g1",
		SenderID:   "jane@example.com",
		SenderName: "Jane Doe",
		Subject:    "urgent: send the quote today",
		Body:       "please send it ASAP",
		ReceivedAt: time.Now(),
	}

	for i := 0; i < 3; i++ {
		res := c.Classify(context.Background(), email)
		got := res.Classification
		if got.Category != model.CategoryInternal ||
			got.Priority != model.PriorityMedium ||
			got.HasTask ||
			len(got.Tasks) != 0 ||
			got.Confidence != 0 {
			t.Fatalf("fallback classification = %+v", got)
		}
		if res.TokensUsed != 0 {
			t.Fatalf("fallback must report zero tokens, got %d", res.TokensUsed)
		}
	}
}

func TestClassifyBatchFallbackProgress(t *testing.T) {
	c := NewOpenAIClassifier("", "gpt-4o-mini", 1024, 0.1, 0, zap.NewNop())

	emails := []gmail.ParsedEmail{
		{GmailID: "a"},
		{GmailID: "b"},
		{GmailID: "c"},
	}

	var progress []int
	results := c.ClassifyBatch(context.Background(), emails, func(processed, total int) {
		if total != 3 {
			t.Fatalf("total = %d", total)
		}
		progress = append(progress, processed)
	})

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if len(progress) != 3 || progress[0] != 1 || progress[2] != 3 {
		t.Fatalf("progress = %v", progress)
	}
	for id, res := range results {
		if res.Classification.Category != model.CategoryInternal {
			t.Fatalf("result for %s = %+v", id, res.Classification)
		}
	}
}

func TestBuildPromptContents(t *testing.T) {
	email := gmail.ParsedEmail{
		SenderID:   "carlos@empresa.com",
		SenderName: "Carlos Romano",
		Subject:    "Demo request",
		Body:       "<p>Can we meet <b>tomorrow</b>?</p>",
		ReceivedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	prompt := buildPrompt(email, now)

	for _, want := range []string{
		"Carlos Romano <carlos@empresa.com>",
		"Demo request",
		"Can we meet tomorrow ?", // tags stripped, whitespace collapsed
		"2024-03-01T10:00:00Z",
		"2024-03-05T09:00:00Z",
		"more than 2 days old",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "<b>") {
		t.Fatal("prompt should not contain raw HTML tags")
	}
}

func TestCleanBodyTruncation(t *testing.T) {
	long := strings.Repeat("x", 6000)
	cleaned := cleanBody(long)
	if len([]rune(cleaned)) != maxBodyChars+3 {
		t.Fatalf("cleaned length = %d, want %d", len([]rune(cleaned)), maxBodyChars+3)
	}
	if !strings.HasSuffix(cleaned, "...") {
		t.Fatal("truncated body should end with ellipsis")
	}
}

func TestSanitize(t *testing.T) {
	due := "2024-03-10"
	tests := []struct {
		name string
		in   Classification
		want func(Classification) bool
	}{
		{
			name: "invalid-category-falls-back",
			in:   Classification{Category: "Unknown", Priority: model.PriorityHigh},
			want: func(c Classification) bool { return reflect.DeepEqual(c, Fallback()) },
		},
		{
			name: "confidence-clamped",
			in:   Classification{Category: model.CategoryClient, Priority: model.PriorityHigh, Confidence: 250},
			want: func(c Classification) bool { return c.Confidence == 100 },
		},
		{
			name: "task-priority-defaults-to-overall",
			in: Classification{
				Category: model.CategoryLead,
				Priority: model.PriorityHigh,
				HasTask:  true,
				Tasks:    []TaskItem{{Description: "follow up", Priority: "???", DueDate: &due}},
			},
			want: func(c Classification) bool { return c.Tasks[0].Priority == model.PriorityHigh },
		},
		{
			name: "long-description-truncated",
			in: Classification{
				Category: model.CategoryClient,
				Priority: model.PriorityMedium,
				HasTask:  true,
				Tasks:    []TaskItem{{Description: strings.Repeat("d", 200), Priority: model.PriorityLow}},
			},
			want: func(c Classification) bool { return len([]rune(c.Tasks[0].Description)) == maxDescriptionChars },
		},
		{
			name: "no-task-clears-list",
			in: Classification{
				Category: model.CategoryInternal,
				Priority: model.PriorityLow,
				HasTask:  false,
				Tasks:    []TaskItem{{Description: "stray", Priority: model.PriorityLow}},
			},
			want: func(c Classification) bool { return len(c.Tasks) == 0 },
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got := sanitize(tc.in)
			if !tc.want(got) {
				t.Fatalf("sanitize(%+v) = %+v", tc.in, got)
			}
		})
	}
}

func TestGenerateTaskTitle(t *testing.T) {
	short := GenerateTaskTitle("Send the quote", "Jane Doe")
	if short != "Send the quote - Jane Doe" {
		t.Fatalf("title = %q", short)
	}

	long := GenerateTaskTitle(strings.Repeat("a", 80), "Jane Doe")
	wantPrefix := strings.Repeat("a", 47) + "..."
	if !strings.HasPrefix(long, wantPrefix) || !strings.HasSuffix(long, " - Jane Doe") {
		t.Fatalf("title = %q", long)
	}
}
