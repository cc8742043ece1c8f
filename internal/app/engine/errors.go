package engine

import "errors"

// Scan-fatal errors. The orchestrator terminalizes the scan as failed
// with the matching failure reason.
var (
	// ErrNoCredential means the owner has no usable provider token.
	ErrNoCredential = errors.New("no provider credential available")

	// ErrInvalidCredential means the provider rejected the token.
	ErrInvalidCredential = errors.New("provider credential rejected")
)

// Per-query errors. The orchestrator skips the query and continues.
var (
	// ErrQuotaExceeded means the provider quota retries were exhausted
	// for a single query.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrInvalidQuery means the provider could not parse the query.
	ErrInvalidQuery = errors.New("provider rejected query")
)

// Per-candidate errors. The extractor drops the candidate.
var (
	// ErrEmptyMatch means the hit carried no usable matched text.
	ErrEmptyMatch = errors.New("empty matched text")

	// ErrExcludedPath means the hit's file path is on the exclusion list.
	ErrExcludedPath = errors.New("excluded file path")
)
