// Package report renders analysis reports for people and for files
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/azure/controversy-analyzer/internal/models"
)

// TextPreviewLength is how many characters of a tweet the console report shows
const TextPreviewLength = 200

// Marshal encodes the report as indented JSON, leaving non-ASCII and HTML characters unescaped
func Marshal(report *models.Report) ([]byte, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// SaveJSON writes the report to path
func SaveJSON(path string, report *models.Report) error {
	data, err := Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}

	return nil
}

// Print writes the human-readable summary of the report
func Print(w io.Writer, report *models.Report) {
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintln(w, "ANALYSIS REPORT")
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 60))

	fmt.Fprintf(w, "Profile: @%s\n", report.Username)
	fmt.Fprintf(w, "Analysis date: %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "\nKeywords searched: %d\n", len(report.KeywordsSearched))
	fmt.Fprintf(w, "Total tweets found: %d\n", report.TotalTweetsFound)
	fmt.Fprintf(w, "Tweets analyzed: %d\n", report.Summary.TotalAnalyzed)
	fmt.Fprintf(w, "Controversial tweets: %d\n", report.Summary.Controversial)
	fmt.Fprintf(w, "Non-controversial tweets: %d\n", report.Summary.NonControversial)

	if report.ControversialCount == 0 {
		fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 60))
		fmt.Fprintln(w, "No controversial tweets found.")
		fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 60))
		return
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintln(w, "CONTROVERSIAL TWEETS")
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 60))

	for i, row := range report.ControversialTweets {
		fmt.Fprintf(w, "[%d] Tweet ID: %s\n", i+1, row.TweetID)
		fmt.Fprintf(w, "    Keyword: %s\n", row.Keyword)
		fmt.Fprintf(w, "    Date: %s\n", FormatDate(row.CreatedAt))
		fmt.Fprintf(w, "    Controversy score: %d/10\n", row.Analysis.ControversyScore)
		fmt.Fprintf(w, "    Topics: %s\n", joinOrNA(row.Analysis.Topics))
		fmt.Fprintf(w, "    Reasons: %s\n", joinOrNA(row.Analysis.Reasons))
		fmt.Fprintf(w, "    Text: %s\n", Truncate(row.Text, TextPreviewLength))
		fmt.Fprintf(w, "    Metrics: likes=%d, retweets=%d, replies=%d, quotes=%d\n\n",
			row.PublicMetrics.LikeCount, row.PublicMetrics.RetweetCount,
			row.PublicMetrics.ReplyCount, row.PublicMetrics.QuoteCount)
	}
}

// Truncate shortens s to at most length characters, marking the cut with "..."
func Truncate(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	return string([]rune(s)[:length]) + "..."
}

// FormatDate renders an optional tweet timestamp
func FormatDate(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}

func joinOrNA(items []string) string {
	if len(items) == 0 {
		return "N/A"
	}
	return strings.Join(items, ", ")
}
