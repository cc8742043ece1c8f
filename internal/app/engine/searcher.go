package engine

import "context"

// Hit is a single code search result returned by a provider.
type Hit struct {
	// Repository is the owning repository's full name (owner/name).
	Repository string
	// Path is the file path within the repository.
	Path string
	// HTMLURL links to the file on the provider's web UI.
	HTMLURL string
	// Fragments are text-match snippets around the matched terms.
	Fragments []string
	// Content is the file content, possibly truncated. May be empty
	// when content fetching is disabled.
	Content string
}

// Searcher executes a single code search query against a provider.
// Implementations own rate limiting and quota retries; they return
// ErrInvalidCredential, ErrQuotaExceeded, or ErrInvalidQuery for the
// orchestrator to dispatch on.
type Searcher interface {
	Search(ctx context.Context, token, query string) ([]Hit, error)
}
