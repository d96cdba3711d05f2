// Package analysis asks an LLM whether a tweet is controversial and turns
// its free-form reply into a fixed-shape verdict
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/azure/controversy-analyzer/internal/metrics"
	"github.com/azure/controversy-analyzer/internal/models"
	"github.com/azure/controversy-analyzer/internal/ratelimit"
	"github.com/azure/controversy-analyzer/internal/report"
)

const (
	// ParseFailureReason is the reason attached to a verdict whose model reply was not valid JSON
	ParseFailureReason = "Failed to parse AI response"
	// AnalysisErrorPrefix starts the reason of a verdict whose API call failed
	AnalysisErrorPrefix = "Analysis error: "
	// MinTemperature replaces a zero temperature, which the client omits from the
	// request and the API then treats as its default of 1
	MinTemperature float32 = 0.01
)

const promptTemplate = `Analyze if this tweet is controversial. Consider:
- Polarizing political statements
- Offensive language
- Misinformation claims
- Inflammatory rhetoric
- Hot-button topics

Tweet: %s

Respond with valid JSON only (no markdown, no code blocks):
{
    "is_controversial": true/false,
    "controversy_score": 0-10,
    "reasons": ["reason1", "reason2"],
    "topics": ["politics", "religion", etc]
}`

// ClassifierInterface defines the contract for tweet classification
type ClassifierInterface interface {
	Classify(ctx context.Context, text string) models.Verdict
}

// Config holds the classifier settings
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float32
	MaxTokens     int
	RateLimitWait time.Duration
}

// Classifier is a ClassifierInterface backed by an OpenAI-compatible chat completion API
type Classifier struct {
	client        *openai.Client
	model         string
	temperature   float32
	maxTokens     int
	rateLimitWait time.Duration
	sleep         ratelimit.SleepFunc
}

// Ensure Classifier implements ClassifierInterface
var _ ClassifierInterface = (*Classifier)(nil)

// NewClassifier creates an OpenAI-backed classifier
func NewClassifier(cfg *Config) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = MinTemperature
	}

	rateLimitWait := cfg.RateLimitWait
	if rateLimitWait <= 0 {
		rateLimitWait = 60 * time.Second
	}

	return &Classifier{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         model,
		temperature:   temperature,
		maxTokens:     maxTokens,
		rateLimitWait: rateLimitWait,
		sleep:         ratelimit.Sleep,
	}
}

// Classify never fails: API and parse errors are folded into a default verdict
// whose reasons explain what went wrong. A rate-limited request is retried once
func (c *Classifier) Classify(ctx context.Context, text string) models.Verdict {
	content, err := c.complete(ctx, text)
	if err != nil && isRateLimit(err) {
		logrus.Warnf("OpenAI rate limit exceeded, waiting %v before retrying once", c.rateLimitWait)
		metrics.RateLimitWaitsTotal.WithLabelValues("openai").Inc()

		if sleepErr := c.sleep(ctx, c.rateLimitWait); sleepErr != nil {
			err = sleepErr
		} else {
			content, err = c.complete(ctx, text)
		}
	}

	if err != nil {
		logrus.Errorf("Error analyzing tweet: %v", err)
		metrics.ClassificationsTotal.WithLabelValues("error").Inc()
		return errorVerdict(AnalysisErrorPrefix + err.Error())
	}

	verdict, err := ParseVerdict(StripCodeFence(content))
	if err != nil {
		logrus.Errorf("Error parsing JSON response: %v (content: %s)", err, report.Truncate(content, 200))
		metrics.ClassificationsTotal.WithLabelValues("parse_error").Inc()
		return errorVerdict(ParseFailureReason)
	}

	if verdict.IsControversial {
		metrics.ClassificationsTotal.WithLabelValues("controversial").Inc()
	} else {
		metrics.ClassificationsTotal.WithLabelValues("not_controversial").Inc()
	}

	return verdict
}

func (c *Classifier) complete(ctx context.Context, text string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(text)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return resp.Choices[0].Message.Content, nil
}

// BuildPrompt embeds the tweet text in the classification instructions
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	return false
}

// IsFailure reports whether verdict is a placeholder for a failed classification
func IsFailure(verdict models.Verdict) bool {
	if verdict.IsControversial || len(verdict.Reasons) != 1 {
		return false
	}
	return verdict.Reasons[0] == ParseFailureReason || strings.HasPrefix(verdict.Reasons[0], AnalysisErrorPrefix)
}

func errorVerdict(reason string) models.Verdict {
	return models.Verdict{
		IsControversial:  false,
		ControversyScore: 0,
		Reasons:          []string{reason},
		Topics:           []string{},
	}
}
