package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/azure/controversy-analyzer/internal/metrics"
	"github.com/azure/controversy-analyzer/internal/models"
	"github.com/azure/controversy-analyzer/internal/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	searchPath     = "/2/tweets/search/recent"
	userLookupPath = "/2/users/by/username/{username}"
	maxResults     = "100"
	tweetFields    = "created_at,public_metrics,text"
)

var (
	// ErrRateLimited is returned once the configured number of rate limit retries is used up
	ErrRateLimited = errors.New("twitter API rate limit exceeded")
	// ErrNotFound is returned when the API reports the user or resource does not exist
	ErrNotFound = errors.New("twitter resource not found")
	// ErrQueryRejected is returned when the API refuses the query as invalid or too long
	ErrQueryRejected = errors.New("twitter API rejected the query")
)

// TwitterConfig holds the settings for the X/Twitter API v2 client
type TwitterConfig struct {
	BearerToken         string
	BaseURL             string
	RateLimitWait       time.Duration
	MaxRateLimitRetries int // 0 means no limit
}

// TwitterSource implements Searcher against the X/Twitter API v2
type TwitterSource struct {
	bearerToken         string
	baseURL             string
	rateLimitWait       time.Duration
	maxRateLimitRetries int
	client              *resty.Client
	sleep               ratelimit.SleepFunc
}

// Ensure TwitterSource implements Searcher
var _ Searcher = (*TwitterSource)(nil)

type twitterSearchResponse struct {
	Data []twitterTweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type twitterTweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
	// Counters absent or null in the payload decode as 0
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
}

type twitterUserResponse struct {
	Data *struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

// NewTwitterSource creates a new Twitter source
func NewTwitterSource(cfg TwitterConfig) *TwitterSource {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twitter.com"
	}

	rateLimitWait := cfg.RateLimitWait
	if rateLimitWait <= 0 {
		rateLimitWait = 60 * time.Second
	}

	return &TwitterSource{
		bearerToken:         cfg.BearerToken,
		baseURL:             baseURL,
		rateLimitWait:       rateLimitWait,
		maxRateLimitRetries: cfg.MaxRateLimitRetries,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "Controversy-Analyzer/1.0"),
		sleep: ratelimit.Sleep,
	}
}

// Search runs query against the recent search endpoint and follows every continuation token
// Errors never escape: they are reported through the outcome kind together with whatever was
// retrieved before they happened
func (t *TwitterSource) Search(ctx context.Context, query string) SearchOutcome {
	var tweets []models.Tweet
	nextToken := ""

	for page := 1; ; page++ {
		searchResp, remaining, err := t.fetchPage(ctx, query, nextToken)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				logrus.Infof("No tweets found for query '%s'", query)
				return SearchOutcome{Kind: SearchComplete, Tweets: tweets}
			case errors.Is(err, ErrQueryRejected) && page == 1:
				logrus.Warnf("Twitter rejected query '%s': %v", query, err)
				return SearchOutcome{Kind: SearchQueryRejected, Err: err}
			default:
				logrus.Errorf("Error during pagination for query '%s' (page %d): %v", query, page, err)
				return SearchOutcome{Kind: SearchPartial, Tweets: tweets, Err: err}
			}
		}

		for _, tweet := range searchResp.Data {
			tweets = append(tweets, normalizeTweet(tweet))
		}

		logrus.Debugf("Twitter page %d for query '%s': %d tweets", page, query, len(searchResp.Data))

		nextToken = searchResp.Meta.NextToken
		if nextToken == "" {
			return SearchOutcome{Kind: SearchComplete, Tweets: tweets}
		}

		// Quota for this window is spent; pause before asking for the next page
		if remaining == 0 {
			logrus.Warnf("Twitter rate limit quota exhausted, waiting %v before fetching page %d", t.rateLimitWait, page+1)
			metrics.RateLimitWaitsTotal.WithLabelValues("twitter").Inc()
			if err := t.sleep(ctx, t.rateLimitWait); err != nil {
				return SearchOutcome{Kind: SearchPartial, Tweets: tweets, Err: err}
			}
		}
	}
}

// fetchPage requests a single page, retrying the same request on HTTP 429
// It returns the remaining quota reported by the API, or -1 if unknown
func (t *TwitterSource) fetchPage(ctx context.Context, query, nextToken string) (*twitterSearchResponse, int, error) {
	params := map[string]string{
		"query":        query,
		"max_results":  maxResults,
		"tweet.fields": tweetFields,
		"expansions":   "author_id",
	}
	if nextToken != "" {
		params["next_token"] = nextToken
	}

	for attempt := 1; ; attempt++ {
		resp, err := t.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+t.bearerToken).
			SetQueryParams(params).
			Get(t.baseURL + searchPath)

		if err != nil {
			metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
			return nil, -1, fmt.Errorf("twitter search request failed: %w", err)
		}

		switch resp.StatusCode() {
		case http.StatusOK:
			metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
		case http.StatusTooManyRequests:
			metrics.SearchRequestsTotal.WithLabelValues("rate_limited").Inc()
			if t.maxRateLimitRetries > 0 && attempt > t.maxRateLimitRetries {
				return nil, -1, fmt.Errorf("%w after %d retries", ErrRateLimited, t.maxRateLimitRetries)
			}

			if resetTime := resp.Header().Get("x-rate-limit-reset"); resetTime != "" {
				logrus.Debugf("Twitter rate limit will reset at: %s", resetTime)
			}
			logrus.Warnf("Twitter API rate limit hit, waiting %v before retrying (attempt %d)", t.rateLimitWait, attempt)
			metrics.RateLimitWaitsTotal.WithLabelValues("twitter").Inc()

			if err := t.sleep(ctx, t.rateLimitWait); err != nil {
				return nil, -1, err
			}
			continue
		case http.StatusNotFound:
			metrics.SearchRequestsTotal.WithLabelValues("not_found").Inc()
			return nil, -1, ErrNotFound
		case http.StatusBadRequest:
			metrics.SearchRequestsTotal.WithLabelValues("rejected").Inc()
			return nil, -1, fmt.Errorf("%w: %s", ErrQueryRejected, string(resp.Body()))
		default:
			metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
			return nil, -1, fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
		}

		var searchResp twitterSearchResponse
		if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
			return nil, -1, fmt.Errorf("failed to parse Twitter response: %w", err)
		}

		return &searchResp, remainingQuota(resp.Header()), nil
	}
}

// UserExists reports whether the account can be looked up
func (t *TwitterSource) UserExists(ctx context.Context, username string) bool {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.bearerToken).
		SetPathParam("username", username).
		Get(t.baseURL + userLookupPath)

	if err != nil {
		logrus.Errorf("Error validating user '%s': %v", username, err)
		return false
	}

	if resp.StatusCode() == http.StatusNotFound {
		return false
	}

	if resp.StatusCode() != http.StatusOK {
		logrus.Errorf("Error validating user '%s': status %d, body: %s", username, resp.StatusCode(), string(resp.Body()))
		return false
	}

	var userResp twitterUserResponse
	if err := json.Unmarshal(resp.Body(), &userResp); err != nil {
		logrus.Errorf("Error validating user '%s': failed to parse response: %v", username, err)
		return false
	}

	return userResp.Data != nil
}

func normalizeTweet(tweet twitterTweet) models.Tweet {
	normalized := models.Tweet{
		ID:       tweet.ID,
		Text:     tweet.Text,
		Keywords: []string{},
	}

	if tweet.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, tweet.CreatedAt)
		if err != nil {
			logrus.Debugf("Failed to parse Twitter timestamp '%s': %v", tweet.CreatedAt, err)
		} else {
			normalized.CreatedAt = &createdAt
		}
	}

	normalized.PublicMetrics = models.PublicMetrics{
		LikeCount:    tweet.PublicMetrics.LikeCount,
		RetweetCount: tweet.PublicMetrics.RetweetCount,
		ReplyCount:   tweet.PublicMetrics.ReplyCount,
		QuoteCount:   tweet.PublicMetrics.QuoteCount,
	}

	return normalized
}

func remainingQuota(header http.Header) int {
	value := header.Get("x-rate-limit-remaining")
	if value == "" {
		return -1
	}

	remaining, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return remaining
}
