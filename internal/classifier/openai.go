package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"mailboard/internal/gmail"
	"mailboard/pkg/circuitbreaker"
	"mailboard/pkg/metrics"
)

// OpenAIClassifier classifies emails through a chat-completion model
// constrained to JSON output. A low temperature favors repeatable
// classification over creative variation. Provider calls run behind a
// circuit breaker; while it is open every call degrades to the
// fallback.
type OpenAIClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	delay       time.Duration
	breaker     *circuitbreaker.CircuitBreaker
	logger      *zap.Logger
}

// NewOpenAIClassifier builds a classifier. An empty apiKey is valid:
// every call then returns the fallback classification without any
// network dependency.
func NewOpenAIClassifier(apiKey, model string, maxTokens int, temperature float64, delay time.Duration, logger *zap.Logger) *OpenAIClassifier {
	c := &OpenAIClassifier{
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		delay:       delay,
		breaker:     circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:      logger,
	}
	if apiKey != "" {
		c.client = openai.NewClient(apiKey)
	}
	return c
}

func (c *OpenAIClassifier) Classify(ctx context.Context, email gmail.ParsedEmail) Result {
	if c.client == nil {
		return Result{Classification: Fallback()}
	}

	prompt := buildPrompt(email, time.Now())

	start := time.Now()
	var resp openai.ChatCompletionResponse
	err := c.breaker.Execute(func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleUser,
						Content: prompt,
					},
				},
				MaxTokens:   c.maxTokens,
				Temperature: float32(c.temperature),
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
			},
		)
		return callErr
	})
	if err != nil {
		metrics.RecordClassifyLatency("error", time.Since(start))
		c.logger.Error("classification call failed, using fallback",
			zap.String("gmail_id", email.GmailID),
			zap.Error(err))
		return Result{Classification: Fallback()}
	}
	metrics.RecordClassifyLatency("ok", time.Since(start))

	if len(resp.Choices) == 0 {
		return Result{Classification: Fallback(), TokensUsed: resp.Usage.TotalTokens}
	}

	var classification Classification
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &classification); err != nil {
		c.logger.Error("failed to parse classification response, using fallback",
			zap.String("gmail_id", email.GmailID),
			zap.String("response", content),
			zap.Error(err))
		return Result{Classification: Fallback(), TokensUsed: resp.Usage.TotalTokens}
	}

	return Result{
		Classification: sanitize(classification),
		TokensUsed:     resp.Usage.TotalTokens,
	}
}

// ClassifyBatch processes emails strictly one at a time with a fixed
// pause between calls, reporting progress after each item.
func (c *OpenAIClassifier) ClassifyBatch(ctx context.Context, emails []gmail.ParsedEmail, onProgress func(processed, total int)) map[string]Result {
	results := make(map[string]Result, len(emails))

	for i, email := range emails {
		results[email.GmailID] = c.Classify(ctx, email)

		if onProgress != nil {
			onProgress(i+1, len(emails))
		}

		if i < len(emails)-1 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(c.delay):
			}
		}
	}

	return results
}
