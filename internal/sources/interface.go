package sources

import (
	"context"

	"github.com/azure/controversy-analyzer/internal/models"
)

// Searcher defines the contract for the post search API
type Searcher interface {
	Search(ctx context.Context, query string) SearchOutcome
	UserExists(ctx context.Context, username string) bool
}

// SearchKind tells the caller how a search ended
type SearchKind int

const (
	// SearchComplete means every page was retrieved (or the query had no results)
	SearchComplete SearchKind = iota
	// SearchPartial means pagination stopped early; Tweets holds what was retrieved before Err
	SearchPartial
	// SearchQueryRejected means the API refused the query as malformed or too long
	SearchQueryRejected
)

func (k SearchKind) String() string {
	switch k {
	case SearchComplete:
		return "complete"
	case SearchPartial:
		return "partial"
	case SearchQueryRejected:
		return "query_rejected"
	default:
		return "unknown"
	}
}

// SearchOutcome is the result of a paginated search
type SearchOutcome struct {
	Kind   SearchKind
	Tweets []models.Tweet
	Err    error
}
