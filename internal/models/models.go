package models

import "time"

// PublicMetrics holds the engagement counters of a tweet
type PublicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// Tweet represents a post retrieved from the search API
type Tweet struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	CreatedAt     *time.Time    `json:"created_at"`
	PublicMetrics PublicMetrics `json:"public_metrics"`
	Keywords      []string      `json:"keywords"` // Keywords that matched
}

// Verdict is the classifier's judgment about a single tweet
type Verdict struct {
	IsControversial  bool     `json:"is_controversial"`
	ControversyScore int      `json:"controversy_score"` // 0-10, as returned by the model
	Reasons          []string `json:"reasons"`
	Topics           []string `json:"topics"`
}

// ResultRow is one (keyword, tweet, verdict) entry of a report
type ResultRow struct {
	TweetID       string        `json:"tweet_id"`
	Text          string        `json:"text"`
	CreatedAt     *time.Time    `json:"created_at"`
	Keyword       string        `json:"keyword"`
	PublicMetrics PublicMetrics `json:"public_metrics"`
	Analysis      Verdict       `json:"analysis"`
}

// Summary holds the per-tweet counters of a report
type Summary struct {
	TotalAnalyzed    int `json:"total_analyzed"`
	Controversial    int `json:"controversial"`
	NonControversial int `json:"non_controversial"`
}

// Report represents the result of analyzing one account
type Report struct {
	Username            string      `json:"username"`
	Timestamp           time.Time   `json:"timestamp"`
	KeywordsSearched    []string    `json:"keywords_searched"`
	TotalTweetsFound    int         `json:"total_tweets_found"`
	ControversialCount  int         `json:"controversial_count"`
	Tweets              []ResultRow `json:"tweets"`
	ControversialTweets []ResultRow `json:"controversial_tweets"`
	Summary             Summary     `json:"summary"`
}
