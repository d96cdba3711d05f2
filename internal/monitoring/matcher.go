package monitoring

import (
	"slices"
	"strings"

	"github.com/azure/controversy-analyzer/internal/models"
)

// MatchKeywords returns the keywords contained in text, ignoring case
// Order follows keywords and duplicates in keywords are kept
func MatchKeywords(text string, keywords []string) []string {
	content := strings.ToLower(text)

	matched := []string{}
	for _, keyword := range keywords {
		if strings.Contains(content, strings.ToLower(keyword)) {
			matched = append(matched, keyword)
		}
	}

	return matched
}

// AttachMatches returns copies of tweets carrying the keywords each one matches
func AttachMatches(tweets []models.Tweet, keywords []string) []models.Tweet {
	matched := make([]models.Tweet, 0, len(tweets))
	for _, tweet := range tweets {
		tweet.Keywords = MatchKeywords(tweet.Text, keywords)
		matched = append(matched, tweet)
	}
	return matched
}

// tagKeyword returns copies of tweets attributed to a single keyword
func tagKeyword(tweets []models.Tweet, keyword string) []models.Tweet {
	tagged := make([]models.Tweet, 0, len(tweets))
	for _, tweet := range tweets {
		tweet.Keywords = []string{keyword}
		tagged = append(tagged, tweet)
	}
	return tagged
}

// DeduplicateTweets keeps the first occurrence of every tweet ID. Keywords carried by
// later duplicates are appended to the kept tweet so no keyword attribution is lost
func DeduplicateTweets(tweets []models.Tweet) []models.Tweet {
	index := make(map[string]int)
	var unique []models.Tweet

	for _, tweet := range tweets {
		pos, seen := index[tweet.ID]
		if !seen {
			index[tweet.ID] = len(unique)
			tweet.Keywords = append([]string{}, tweet.Keywords...)
			unique = append(unique, tweet)
			continue
		}

		for _, keyword := range tweet.Keywords {
			if !slices.Contains(unique[pos].Keywords, keyword) {
				unique[pos].Keywords = append(unique[pos].Keywords, keyword)
			}
		}
	}

	return unique
}
