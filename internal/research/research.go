// Package research runs the web search that grounds a topic before outlining.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source is one search result.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Response is the outcome of a single query.
type Response struct {
	Query      string
	Results    []Source
	SearchTime time.Duration
}

// Searcher looks up at most limit results for query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*Response, error)
}

const (
	MaxQueryLength = 500
	MaxResultsCap  = 10
)

var (
	ErrInvalidQuery = errors.New("invalid search query")
	ErrQueryTooLong = fmt.Errorf("search query too long (max %d characters)", MaxQueryLength)
	ErrTimeout      = errors.New("search request timed out")
)

// SanitizeQuery validates a raw query and strips angle brackets.
func SanitizeQuery(q string) (string, error) {
	if strings.TrimSpace(q) == "" {
		return "", ErrInvalidQuery
	}
	if len([]rune(q)) > MaxQueryLength {
		return "", ErrQueryTooLong
	}
	q = strings.NewReplacer("<", "", ">", "").Replace(q)
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrInvalidQuery
	}
	return q, nil
}

// ClampResults bounds a requested result count to [1, MaxResultsCap].
func ClampResults(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxResultsCap {
		return MaxResultsCap
	}
	return n
}

// FormatForAI renders a response as the markdown context block handed to the
// outline prompt.
func FormatForAI(r *Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Web Search Results for: %q\n\n", r.Query)
	fmt.Fprintf(&b, "Found %d results in %dms\n\n", len(r.Results), r.SearchTime.Milliseconds())
	for i, s := range r.Results {
		fmt.Fprintf(&b, "### Result %d: %s\n", i+1, s.Title)
		fmt.Fprintf(&b, "**URL:** %s\n", s.URL)
		fmt.Fprintf(&b, "**Summary:** %s\n\n", s.Snippet)
	}
	return b.String()
}
