package sources

import (
	"fmt"
	"strings"
)

// BuildBatchQuery combines all keywords into a single OR query restricted to the account
// Keywords with spaces or quote/paren characters are wrapped in double quotes as-is
func BuildBatchQuery(username string, keywords []string) string {
	terms := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if needsQuoting(keyword) {
			keyword = `"` + keyword + `"`
		}
		terms = append(terms, keyword)
	}

	return fmt.Sprintf("from:%s (%s)", username, strings.Join(terms, " OR "))
}

// BuildSingleQuery is the per-keyword query used when the batch query is rejected
func BuildSingleQuery(username, keyword string) string {
	return fmt.Sprintf("from:%s %s", username, keyword)
}

func needsQuoting(keyword string) bool {
	return strings.ContainsAny(keyword, ` "'()`)
}
